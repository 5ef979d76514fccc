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
	"unsafe"
)

// arrayRetireList is the array-form retire list: a dense slice, append-only
// until a scan compacts it. It grows as needed; no capacity bound is
// enforced. Only the owning handle's goroutine
// ever calls add; the mutex exists solely so the optional background
// scanner can run concurrently with it without corrupting the slice.
type arrayRetireList struct {
	mu    sync.Mutex
	items []unsafe.Pointer
}

func newArrayRetireList() *arrayRetireList {
	return &arrayRetireList{}
}

func (l *arrayRetireList) add(p unsafe.Pointer) {
	l.mu.Lock()
	l.items = append(l.items, p)
	l.mu.Unlock()
}

func (l *arrayRetireList) len() int {
	l.mu.Lock()
	n := len(l.items)
	l.mu.Unlock()
	return n
}

// scanArray probes every other thread's slots for each retiree: the outer
// loop is over retirees, the inner double loop over (thread, slot), giving
// an O(retired * threads * slots) bound for this form.
func (d *Domain) scanArray(owner int) {
	list := d.lists[owner].(*arrayRetireList)
	list.mu.Lock()
	defer list.mu.Unlock()

	kept := list.items[:0]
	for _, p := range list.items {
		if d.isProtectedByOthers(owner, p) {
			kept = append(kept, p)
		} else {
			d.cfg.Deleter(p)
			d.stats.bumpNodesDestroyed()
		}
	}
	list.items = kept
}
