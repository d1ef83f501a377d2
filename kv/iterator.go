package kv

// btreeIterator is a double-ended cursor over a BTree. Each step re-descends
// from the root in O(log n); the tree has no leaf sibling pointers to walk.
// The iterator holds the tree's read lock until Close is called, so writers
// block for its whole lifetime.
type btreeIterator struct {
	tree *BTree
	r    Range

	frontStarted bool
	backStarted  bool
	frontDone    bool
	backDone     bool
	lastFront    []byte
	lastBack     []byte
	closed       bool
}

var _ Iterator = (*btreeIterator)(nil)

func (it *btreeIterator) Next() (key, value []byte, ok bool) {
	if it.frontDone || it.closed {
		return nil, nil, false
	}
	var k, v []byte
	if !it.frontStarted {
		k, v, ok = findAtOrAfter(it.tree.root, it.r.Start, it.r.StartExcl)
	} else {
		k, v, ok = it.tree.root.getNext(it.lastFront)
	}
	it.frontStarted = true
	if !ok || !it.r.contains(k) {
		it.frontDone = true
		return nil, nil, false
	}
	if it.lastBack != nil && compare(k, it.lastBack) >= 0 {
		it.frontDone = true
		it.backDone = true
		return nil, nil, false
	}
	it.lastFront = k
	return k, v, true
}

func (it *btreeIterator) Prev() (key, value []byte, ok bool) {
	if it.backDone || it.closed {
		return nil, nil, false
	}
	var k, v []byte
	if !it.backStarted {
		k, v, ok = findAtOrBefore(it.tree.root, it.r.End, it.r.EndIncl)
	} else {
		k, v, ok = it.tree.root.getPrev(it.lastBack)
	}
	it.backStarted = true
	if !ok || !it.r.contains(k) {
		it.backDone = true
		return nil, nil, false
	}
	if it.lastFront != nil && compare(k, it.lastFront) <= 0 {
		it.backDone = true
		it.frontDone = true
		return nil, nil, false
	}
	it.lastBack = k
	return k, v, true
}

func (it *btreeIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.tree.mu.RUnlock()
}

// findAtOrAfter returns the first key >= start (or > start if excl), the
// smallest item of n's subtree if start is nil.
func findAtOrAfter(n *node, start []byte, excl bool) (key, value []byte, ok bool) {
	if start == nil {
		return n.getFirst()
	}
	if !excl {
		if v, ok := n.get(start); ok {
			return cloneBytes(start), v, true
		}
	}
	return n.getNext(start)
}

// findAtOrBefore returns the last key <= end (or < end if !incl), the
// largest item of n's subtree if end is nil.
func findAtOrBefore(n *node, end []byte, incl bool) (key, value []byte, ok bool) {
	if end == nil {
		return n.getLast()
	}
	if incl {
		if v, ok := n.get(end); ok {
			return cloneBytes(end), v, true
		}
	}
	return n.getPrev(end)
}
