package kv

import "sort"

type nodeKind int

const (
	kindRoot nodeKind = iota
	kindInner
	kindLeaf
)

type item struct {
	key   []byte
	value []byte
}

// node is a B+tree node. Root and Inner nodes hold keys/children (the key at
// index i is the smallest key present in the subtree rooted at children[i+1]);
// Leaf nodes hold sorted key/value items directly.
//
// All nodes of a tree share the same order. Leaf and Inner nodes are kept
// between ceil(order/2) and order items; Root may hold between 0 and order.
type node struct {
	kind     nodeKind
	order    int
	keys     [][]byte
	children []*node
	items    []item
}

func newRootNode(order int) *node { return &node{kind: kindRoot, order: order} }

func (n *node) size() int {
	if n.kind == kindLeaf {
		return len(n.items)
	}
	return len(n.children)
}

func (n *node) capacity() int { return n.order }

func (n *node) minSize() int {
	if n.kind == kindRoot {
		return 0
	}
	return (n.order + 1) / 2
}

// lookupIndex returns the index of the child responsible for key: the first
// index i such that keys[i] > key, or len(keys) if none. Only valid on
// non-empty Root/Inner nodes.
func (n *node) lookupIndex(key []byte) int {
	return sort.Search(len(n.keys), func(i int) bool { return compare(n.keys[i], key) > 0 })
}

func (n *node) get(key []byte) ([]byte, bool) {
	switch n.kind {
	case kindLeaf:
		pos := sort.Search(len(n.items), func(i int) bool { return compare(n.items[i].key, key) >= 0 })
		if pos < len(n.items) && compare(n.items[pos].key, key) == 0 {
			return cloneBytes(n.items[pos].value), true
		}
		return nil, false
	default:
		if len(n.children) == 0 {
			return nil, false
		}
		return n.children[n.lookupIndex(key)].get(key)
	}
}

func (n *node) getFirst() (key, value []byte, ok bool) {
	if n.kind == kindLeaf {
		if len(n.items) == 0 {
			return nil, nil, false
		}
		return cloneBytes(n.items[0].key), cloneBytes(n.items[0].value), true
	}
	if len(n.children) == 0 {
		return nil, nil, false
	}
	return n.children[0].getFirst()
}

func (n *node) getLast() (key, value []byte, ok bool) {
	if n.kind == kindLeaf {
		if len(n.items) == 0 {
			return nil, nil, false
		}
		last := n.items[len(n.items)-1]
		return cloneBytes(last.key), cloneBytes(last.value), true
	}
	if len(n.children) == 0 {
		return nil, nil, false
	}
	return n.children[len(n.children)-1].getLast()
}

func (n *node) getNext(key []byte) (rkey, rvalue []byte, ok bool) {
	if n.kind == kindLeaf {
		pos := sort.Search(len(n.items), func(i int) bool { return compare(n.items[i].key, key) > 0 })
		if pos < len(n.items) {
			return cloneBytes(n.items[pos].key), cloneBytes(n.items[pos].value), true
		}
		return nil, nil, false
	}
	if len(n.children) == 0 {
		return nil, nil, false
	}
	i := n.lookupIndex(key)
	if k, v, ok := n.children[i].getNext(key); ok {
		return k, v, true
	}
	if i < len(n.children)-1 {
		return n.children[i+1].getNext(key)
	}
	return nil, nil, false
}

func (n *node) getPrev(key []byte) (rkey, rvalue []byte, ok bool) {
	if n.kind == kindLeaf {
		for i := len(n.items) - 1; i >= 0; i-- {
			if compare(n.items[i].key, key) < 0 {
				return cloneBytes(n.items[i].key), cloneBytes(n.items[i].value), true
			}
		}
		return nil, nil, false
	}
	if len(n.children) == 0 {
		return nil, nil, false
	}
	i := n.lookupIndex(key)
	if k, v, ok := n.children[i].getPrev(key); ok {
		return k, v, true
	}
	if i > 0 {
		return n.children[i-1].getPrev(key)
	}
	return nil, nil, false
}

// set inserts or updates key/value. If the node overflows and splits, it
// returns the split (separator) key and the new right sibling node; n itself
// is mutated into the left half in place.
func (n *node) set(key, value []byte) (splitKey []byte, right *node, split bool) {
	switch n.kind {
	case kindLeaf:
		return setLeaf(n, key, value)
	case kindInner:
		return setChildren(n, key, value)
	case kindRoot:
		sk, rc, ok := setChildren(n, key, value)
		if !ok {
			return nil, nil, false
		}
		left := &node{kind: kindInner, order: n.order, keys: n.keys, children: n.children}
		rc.kind = kindInner
		n.keys = [][]byte{sk}
		n.children = []*node{left, rc}
		return nil, nil, false
	}
	panic("kv: unreachable node kind")
}

func setLeaf(n *node, key, value []byte) (splitKey []byte, right *node, split bool) {
	pos := sort.Search(len(n.items), func(i int) bool { return compare(n.items[i].key, key) >= 0 })
	if pos < len(n.items) && compare(n.items[pos].key, key) == 0 {
		n.items[pos].value = cloneBytes(value)
		return nil, nil, false
	}
	insertAt := pos
	newItem := item{cloneBytes(key), cloneBytes(value)}
	if len(n.items) < n.order {
		n.items = insertItemAt(n.items, insertAt, newItem)
		return nil, nil, false
	}

	splitAt := len(n.items) / 2
	if insertAt >= splitAt {
		splitAt++
	}
	rightItems := append([]item{}, n.items[splitAt:]...)
	n.items = n.items[:splitAt]
	if insertAt >= len(n.items) {
		rightItems = insertItemAt(rightItems, insertAt-len(n.items), newItem)
	} else {
		n.items = insertItemAt(n.items, insertAt, newItem)
	}
	right = &node{kind: kindLeaf, order: n.order, items: rightItems}
	return cloneBytes(rightItems[0].key), right, true
}

// setChildren runs the Root/Inner insertion algorithm shared by both kinds;
// the caller wraps the returned right half with the correct kind.
func setChildren(n *node, key, value []byte) (splitKey []byte, right *node, split bool) {
	if len(n.children) == 0 {
		leaf := &node{kind: kindLeaf, order: n.order, items: []item{{cloneBytes(key), cloneBytes(value)}}}
		n.children = []*node{leaf}
		return nil, nil, false
	}

	i := n.lookupIndex(key)
	sk, splitChild, ok := n.children[i].set(key, value)
	if !ok {
		return nil, nil, false
	}
	insertAt := i + 1

	if len(n.children) < n.order {
		n.keys = insertBytesAt(n.keys, insertAt-1, sk)
		n.children = insertNodeAt(n.children, insertAt, splitChild)
		return nil, nil, false
	}

	splitAt := len(n.children) / 2
	if insertAt >= splitAt {
		splitAt++
	}
	rnodes := append([]*node{}, n.children[splitAt:]...)
	n.children = n.children[:splitAt]
	rkeysStart := len(n.keys) - (len(rnodes) - 1)
	rkeys := append([][]byte{}, n.keys[rkeysStart:]...)
	n.keys = n.keys[:rkeysStart]

	var out []byte
	switch {
	case insertAt > len(n.children):
		idx := insertAt - 1 - len(n.keys)
		rkeys = insertBytesAt(rkeys, idx, sk)
		rnodes = insertNodeAt(rnodes, insertAt-len(n.children), splitChild)
		out = n.keys[len(n.keys)-1]
		n.keys = n.keys[:len(n.keys)-1]
	case insertAt == len(n.children):
		out = sk
		rkeys = insertBytesAt(rkeys, 0, n.keys[len(n.keys)-1])
		n.keys = n.keys[:len(n.keys)-1]
		rnodes = insertNodeAt(rnodes, 0, splitChild)
	default:
		n.keys = insertBytesAt(n.keys, insertAt-1, sk)
		n.children = insertNodeAt(n.children, insertAt, splitChild)
		out = n.keys[len(n.keys)-1]
		n.keys = n.keys[:len(n.keys)-1]
	}
	right = &node{order: n.order, keys: rkeys, children: rnodes}
	return out, right, true
}

// delete removes key from the subtree rooted at n, rebalancing as needed.
func (n *node) delete(key []byte) {
	switch n.kind {
	case kindLeaf:
		deleteLeaf(n, key)
	case kindInner:
		deleteChildren(n, key)
	case kindRoot:
		if len(n.children) == 0 {
			return
		}
		deleteChildren(n, key)
		for len(n.children) == 1 && n.children[0].kind == kindInner {
			child := n.children[0]
			n.keys = child.keys
			n.children = child.children
		}
		if len(n.children) == 1 && n.children[0].size() == 0 {
			n.children = nil
		}
	}
}

func deleteLeaf(n *node, key []byte) {
	for i, it := range n.items {
		c := compare(it.key, key)
		if c > 0 {
			return
		}
		if c == 0 {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return
		}
	}
}

func deleteChildren(n *node, key []byte) {
	if len(n.children) == 0 {
		return
	}
	i := n.lookupIndex(key)
	child := n.children[i]
	child.delete(key)

	if child.size() >= child.minSize() || len(n.children) == 1 {
		return
	}

	size, order := n.children[i].size(), n.children[i].capacity()
	var lsize, lorder, rsize, rorder int
	if i > 0 {
		lsize, lorder = n.children[i-1].size(), n.children[i-1].capacity()
	}
	if i < len(n.children)-1 {
		rsize, rorder = n.children[i+1].size(), n.children[i+1].capacity()
	}

	switch {
	case lsize > (lorder+1)/2:
		rotateRight(n, i-1)
	case rsize > (rorder+1)/2:
		rotateLeft(n, i+1)
	case lsize+size <= lorder:
		merge(n, i-1)
	case rsize+size <= order:
		merge(n, i)
	}
}

// merge folds the node at i+1 into the node at i, consuming the separator key.
func merge(n *node, i int) {
	parentKey := n.keys[i]
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	right := n.children[i+1]
	n.children = append(n.children[:i+1], n.children[i+2:]...)
	left := n.children[i]
	switch {
	case left.kind == kindInner && right.kind == kindInner:
		left.keys = append(left.keys, parentKey)
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
	case left.kind == kindLeaf && right.kind == kindLeaf:
		left.items = append(left.items, right.items...)
	default:
		panic("kv: cannot merge nodes of mismatched kind")
	}
}

// rotateLeft moves the first item/child of the node at i into its left
// sibling, adjusting the separator key at i-1.
func rotateLeft(n *node, i int) {
	switch n.children[i].kind {
	case kindInner:
		c := n.children[i]
		key, child := c.keys[0], c.children[0]
		c.keys = c.keys[1:]
		c.children = c.children[1:]
		sep := n.keys[i-1]
		n.keys[i-1] = key
		left := n.children[i-1]
		left.keys = append(left.keys, sep)
		left.children = append(left.children, child)
	case kindLeaf:
		c := n.children[i]
		sepKey := cloneBytes(c.items[1].key)
		moved := c.items[0]
		c.items = c.items[1:]
		n.keys[i-1] = sepKey
		left := n.children[i-1]
		left.items = append(left.items, moved)
	}
}

// rotateRight moves the last item/child of the node at i into its right
// sibling, adjusting the separator key at i.
func rotateRight(n *node, i int) {
	switch n.children[i].kind {
	case kindInner:
		c := n.children[i]
		last := len(c.keys) - 1
		key, child := c.keys[last], c.children[len(c.children)-1]
		c.keys = c.keys[:last]
		c.children = c.children[:len(c.children)-1]
		sep := n.keys[i]
		n.keys[i] = key
		right := n.children[i+1]
		right.keys = append([][]byte{sep}, right.keys...)
		right.children = append([]*node{child}, right.children...)
	case kindLeaf:
		c := n.children[i]
		last := len(c.items) - 1
		moved := c.items[last]
		c.items = c.items[:last]
		n.keys[i] = cloneBytes(moved.key)
		right := n.children[i+1]
		right.items = append([]item{moved}, right.items...)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func insertItemAt(items []item, at int, it item) []item {
	items = append(items, item{})
	copy(items[at+1:], items[at:])
	items[at] = it
	return items
}

func insertBytesAt(keys [][]byte, at int, key []byte) [][]byte {
	keys = append(keys, nil)
	copy(keys[at+1:], keys[at:])
	keys[at] = key
	return keys
}

func insertNodeAt(nodes []*node, at int, n *node) []*node {
	nodes = append(nodes, nil)
	copy(nodes[at+1:], nodes[at:])
	nodes[at] = n
	return nodes
}
