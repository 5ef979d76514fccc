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

package hazard

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dijkstracula/hplist/rbtree"
)

// indexedRetireList is the indexed-form retire list: an rbtree keyed by
// pointer value accelerates the scan's membership test to O(log R) per
// published slot, at the cost of transposing the scan's loops.
type indexedRetireList struct {
	mu    sync.Mutex
	tree  *rbtree.Tree
	items []unsafe.Pointer
}

func newIndexedRetireList() *indexedRetireList {
	return &indexedRetireList{tree: rbtree.New()}
}

func (l *indexedRetireList) add(p unsafe.Pointer) {
	l.mu.Lock()
	l.tree.Insert(p)
	l.items = append(l.items, p)
	l.mu.Unlock()
}

func (l *indexedRetireList) len() int {
	l.mu.Lock()
	n := len(l.items)
	l.mu.Unlock()
	return n
}

// scanIndexed transposes the loops scanArray uses: it walks every other
// thread's slots once, looking each published value up in the local index
// (O(log R)) instead of walking retirees against slots. The hits -
// retirees some other thread still protects - seed a fresh tree and item
// list; everything else is handed to the deleter and the old list discarded.
func (d *Domain) scanIndexed(owner int) {
	list := d.lists[owner].(*indexedRetireList)
	list.mu.Lock()
	defer list.mu.Unlock()

	hits := make(map[unsafe.Pointer]struct{}, len(list.items))
	for t := 0; t < d.cfg.MaxThreads; t++ {
		if t == owner {
			continue
		}
		row := &d.rows[t]
		for s := range row.slots {
			v := atomic.LoadPointer(&row.slots[s])
			if v == nil {
				continue
			}
			if list.tree.Search(v) != nil {
				hits[v] = struct{}{}
			}
		}
	}

	newTree := rbtree.New()
	kept := make([]unsafe.Pointer, 0, len(hits))
	for _, p := range list.items {
		if _, ok := hits[p]; ok {
			newTree.Insert(p)
			kept = append(kept, p)
		} else {
			d.cfg.Deleter(p)
			d.stats.bumpNodesDestroyed()
		}
	}
	list.tree = newTree
	list.items = kept
}
