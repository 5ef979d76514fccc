// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package hplist

import "sync/atomic"

// liveMagic marks a node that has not yet been handed to the deleter; a
// mismatch here means something dereferenced a node after it was reclaimed.
const liveMagic uint32 = 0x4850_4c53 // "HPLS"

// markedRef packs a successor pointer with the Harris mark bit. A classic
// C implementation tags the low bit of the next word directly; Go's garbage
// collector requires a pointer-typed field to always look like a valid
// pointer, so the low-bit trick isn't available to a field the GC scans.
// Instead the mark lives in a separate atomic word at the cost of one extra
// pointer indirection: next is an atomic pointer to an immutable
// {successor, marked} pair, and every transition installs a fresh pair via
// CompareAndSwap, the same technique behind Java's AtomicMarkableReference.
// Reads are a single atomic load plus a struct field read; CAS compares by
// pair identity, so holding the *markedRef a traversal last observed is
// exactly "the value last read" a find needs to validate against.
type markedRef struct {
	next   *node
	marked bool
}

// node is a list element. Real nodes are created by Insert and sit strictly
// between the head and tail sentinels with strictly increasing keys.
type node struct {
	key   uint64
	next  atomic.Pointer[markedRef]
	magic uint32
}

func newNode(key uint64, succ *node) *node {
	n := &node{key: key, magic: liveMagic}
	// A plain store is sufficient here: the node isn't shared yet.
	n.next.Store(&markedRef{next: succ, marked: false})
	return n
}

func newSentinel(key uint64, succ *node) *node {
	n := &node{key: key, magic: liveMagic}
	n.next.Store(&markedRef{next: succ})
	return n
}

func (n *node) loadRef() *markedRef {
	return n.next.Load()
}

// assertLive panics if n has already been handed to the deleter. A live
// traversal should never reach a reclaimed node; if it does, something
// upstream released a hazard pointer too early, and that's a bug worth
// crashing loudly for rather than silently corrupting memory.
func assertLive(n *node) {
	if atomic.LoadUint32(&n.magic) != liveMagic {
		panic("hplist: dereferenced a retired node")
	}
}

func killMagic(n *node) {
	atomic.StoreUint32(&n.magic, 0)
}
