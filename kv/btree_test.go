package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBTreeGetSet(t *testing.T) {
	tr := New(DefaultOrder)
	_, ok := tr.Get([]byte("a"))
	require.False(t, ok)

	tr.Set([]byte("a"), []byte("1"))
	v, ok := tr.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	tr.Set([]byte("a"), []byte("2"))
	v, ok = tr.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)
}

func TestBTreeDelete(t *testing.T) {
	tr := New(DefaultOrder)
	tr.Set([]byte("a"), []byte("1"))
	tr.Delete([]byte("a"))
	_, ok := tr.Get([]byte("a"))
	require.False(t, ok)
	tr.Delete([]byte("missing")) // no-op, must not panic
}

// TestBTreeSplitPropagation reproduces the order-3 split walkthrough: root
// starts empty, inserting keys a..h in order splits the root into a one-key
// root with two inner children, each holding two leaves of two items.
func TestBTreeSplitPropagation(t *testing.T) {
	tr := New(3)
	keys := []byte("abcdefgh")
	for i, k := range keys {
		tr.Set([]byte{k}, []byte{byte(i) + 1})
	}

	require.Equal(t, kindRoot, tr.root.kind)
	require.Len(t, tr.root.children, 2)
	require.Len(t, tr.root.keys, 1)
	for _, child := range tr.root.children {
		require.Equal(t, kindInner, child.kind)
		require.Len(t, child.children, 2)
		for _, leaf := range child.children {
			require.Equal(t, kindLeaf, leaf.kind)
			require.Len(t, leaf.items, 2)
		}
	}

	it := tr.Scan(Unbounded())
	defer it.Close()
	var got []byte
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, k[0])
	}
	assert.Equal(t, "abcdefgh", string(got))
}

func TestBTreeScanRange(t *testing.T) {
	tr := New(4)
	for _, k := range "abcdefg" {
		tr.Set([]byte{byte(k)}, []byte{byte(k)})
	}

	it := tr.Scan(Range{Start: []byte("b"), End: []byte("e")})
	defer it.Close()
	var got []byte
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, k[0])
	}
	assert.Equal(t, "bcd", string(got))
}

func TestBTreeScanDoubleEnded(t *testing.T) {
	tr := New(4)
	for _, k := range "abcde" {
		tr.Set([]byte{byte(k)}, []byte{byte(k)})
	}

	it := tr.Scan(Unbounded())
	defer it.Close()
	k, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "a", string(k))

	k, _, ok = it.Prev()
	require.True(t, ok)
	assert.Equal(t, "e", string(k))

	k, _, ok = it.Prev()
	require.True(t, ok)
	assert.Equal(t, "d", string(k))

	k, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "b", string(k))

	k, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "c", string(k))

	_, _, ok = it.Next()
	require.False(t, ok)
	_, _, ok = it.Prev()
	require.False(t, ok)
}

func TestBTreeScanPrefix(t *testing.T) {
	tr := New(4)
	for _, k := range []string{"ax", "ay", "az", "b", "c"} {
		tr.Set([]byte(k), []byte(k))
	}
	it := tr.Scan(Prefix([]byte("a")))
	defer it.Close()
	var got []string
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	assert.Equal(t, []string{"ax", "ay", "az"}, got)
}

func TestBTreeManyInsertsAndDeletes(t *testing.T) {
	tr := New(4)
	n := 200
	for i := 0; i < n; i++ {
		k := []byte{byte(i >> 8), byte(i)}
		tr.Set(k, k)
	}
	for i := 0; i < n; i += 2 {
		tr.Delete([]byte{byte(i >> 8), byte(i)})
	}
	for i := 0; i < n; i++ {
		k := []byte{byte(i >> 8), byte(i)}
		v, ok := tr.Get(k)
		if i%2 == 0 {
			assert.False(t, ok)
		} else {
			require.True(t, ok)
			assert.Equal(t, k, v)
		}
	}
}
