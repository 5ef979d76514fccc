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

// Package tid assigns dense small-integer identities to participants of a
// hazard-pointer domain, used elsewhere to index per-thread hazard slot rows
// and retire lists without a lock. An Allocator is append-only for its
// lifetime: ids are handed out and never reclaimed.
package tid

import "sync/atomic"

// Unset is the sentinel cached by a participant that has not yet queried its id.
const Unset = -1

// Allocator is process state shared by every participant of one domain: a
// single atomically-incremented word hands out dense ids with no lock and
// no deallocation.
type Allocator struct {
	next int64
}

// NewAllocator returns an Allocator with no ids handed out yet.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Cache holds one participant's id, shared across every call that
// participant makes into the domain. Go has no thread-local storage, so the
// caller owns a Cache (typically embedded in a per-goroutine handle) and
// passes it to Of on every call; the first call pays the allocation, every
// later call is a single atomic load.
type Cache struct {
	id int64
}

// NewCache returns a Cache primed to the unset sentinel.
func NewCache() *Cache {
	return &Cache{id: Unset}
}

// Of returns the dense id cached in c, assigning one from a on first use.
// max is the compile-time participant bound; exceeding it is a programmer
// error and panics rather than returning an error a caller could ignore.
func (a *Allocator) Of(c *Cache, max int) int {
	if id := atomic.LoadInt64(&c.id); id != Unset {
		return int(id)
	}
	id := atomic.AddInt64(&a.next, 1) - 1
	if int(id) >= max {
		panic("tid: exceeded maximum number of participating threads")
	}
	atomic.StoreInt64(&c.id, id)
	return int(id)
}

// Count returns the number of distinct ids handed out so far. Intended for
// diagnostics and tests, not the fast path.
func (a *Allocator) Count() int {
	return int(atomic.LoadInt64(&a.next))
}
