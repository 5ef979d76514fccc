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

import (
	"math"
	"time"
	"unsafe"

	"github.com/dijkstracula/hplist/hazard"
)

// FindMode selects which of the two find disciplines a List uses. The
// choice also fixes the retire-list shape the underlying hazard.Domain
// uses, rather than letting the two vary independently: Ordered always
// pairs with hazard.IndexedRetire, since the ordered find's batched splices
// are the case that index actually pays for; Conservative pairs with
// hazard.ArrayRetire.
type FindMode int

const (
	// Conservative unlinks one marked node at a time during a traversal.
	Conservative FindMode = iota
	// Ordered tracks runs of marked nodes and splices a whole run out with
	// a single CAS.
	Ordered
)

// Config tunes a List's embedded hazard.Domain. The zero value is usable:
// Conservative find, hazard's defaults for Slots/MaxThreads, and scan on
// every retire.
type Config struct {
	Mode FindMode
	// MaxThreads bounds the number of goroutines that may ever call
	// AcquireHandle on this list's domain.
	MaxThreads int
	// Threshold is the retire-list size that triggers an inline scan; 0
	// means scan on every retire.
	Threshold int
	// ScanInterval, if non-zero, additionally runs a background scan on
	// this cadence.
	ScanInterval time.Duration
}

// List is a concurrent, lock-free, ordered set of uint64 keys, reclaiming
// retired nodes through an owned hazard-pointer domain rather than a GC-only
// scheme, so a reader mid-traversal can never observe a node whose memory
// has been reused for something else.
//
// Keys 0 and math.MaxUint64 are reserved for the head and tail sentinels
// and may not be inserted or deleted; List panics if asked to, since that's
// caller misuse rather than a recoverable condition.
type List struct {
	head, tail *node
	domain     *hazard.Domain
	stats      *hazard.Stats
	mode       FindMode
}

// New constructs an empty List. Passing no Config uses the zero value.
func New(cfg ...Config) *List {
	c := Config{}
	if len(cfg) > 0 {
		c = cfg[0]
	}

	strategy := hazard.ArrayRetire
	if c.Mode == Ordered {
		strategy = hazard.IndexedRetire
	}

	tail := newSentinel(math.MaxUint64, nil)
	head := newSentinel(0, tail)

	l := &List{head: head, tail: tail, mode: c.Mode}

	domainCfg := hazard.Config{
		Slots:        hazard.DefaultSlots,
		MaxThreads:   c.MaxThreads,
		Threshold:    c.Threshold,
		Strategy:     strategy,
		ScanInterval: c.ScanInterval,
		Deleter:      l.destroy,
	}
	l.domain = hazard.New(domainCfg)
	l.stats = l.domain.StatsRef()
	return l
}

func (l *List) destroy(p unsafe.Pointer) {
	killMagic((*node)(p))
}

func validateKey(key uint64) {
	if key == 0 || key == math.MaxUint64 {
		panic("hplist: 0 and math.MaxUint64 are reserved sentinel keys")
	}
}

// AcquireHandle binds the calling goroutine to this list's domain. Call
// once per goroutine and reuse the Handle for every subsequent call that
// goroutine makes into this list.
func (l *List) AcquireHandle() *hazard.Handle {
	return l.domain.AcquireHandle()
}

// Stats returns a snapshot of the underlying domain's instrumentation
// counters, plus the insert/find-side counters this package bumps directly.
func (l *List) Stats() hazard.Stats {
	return l.domain.Stats()
}

// Insert adds key to the list. Returns false if key was already present.
func (l *List) Insert(h *hazard.Handle, key uint64) bool {
	validateKey(key)
	for {
		r := l.find(h, key)
		if r.found {
			h.Clear()
			return false
		}

		n := newNode(key, r.curr)
		newRef := &markedRef{next: n, marked: false}
		l.stats.BumpCASAttempts()
		if r.pred.next.CompareAndSwap(r.predRef, newRef) {
			l.stats.BumpNodesConstructed()
			h.Clear()
			return true
		}
		l.stats.BumpLogicalInsertRetries()
	}
}

// Delete removes key from the list. Returns false if key was absent.
//
// Deletion is two-phase: curr's own next is CAS'd from unmarked to marked
// first (the linearization point - the key is gone the instant this
// succeeds, regardless of whether the physical unlink below ever runs),
// then a best-effort physical unlink splices curr out of its predecessor
// and retires it. A thread that loses the physical unlink race simply
// leaves curr for the next find to clean up.
func (l *List) Delete(h *hazard.Handle, key uint64) bool {
	validateKey(key)
	for {
		r := l.find(h, key)
		if !r.found {
			h.Clear()
			return false
		}

		markedVal := &markedRef{next: r.currRef.next, marked: true}
		l.stats.BumpCASAttempts()
		if !r.curr.next.CompareAndSwap(r.currRef, markedVal) {
			if r.curr.loadRef().marked {
				// Someone else's delete of the same key won the race.
				h.Clear()
				return true
			}
			l.stats.BumpLogicalDeleteRetries()
			continue
		}

		l.stats.BumpCASAttempts()
		if r.pred.next.CompareAndSwap(r.predRef, &markedRef{next: markedVal.next, marked: false}) {
			h.Retire(unsafe.Pointer(r.curr))
		}
		h.Clear()
		return true
	}
}

// Contains reports whether key is currently present.
func (l *List) Contains(h *hazard.Handle, key uint64) bool {
	validateKey(key)
	r := l.find(h, key)
	h.Clear()
	return r.found
}

// Len walks the list and counts live (unmarked) nodes. It is a diagnostic:
// like any snapshot of a concurrently-mutated structure, the result may be
// stale by the time the caller observes it.
func (l *List) Len() int {
	n := 0
	for cur := l.head.loadRef().next; cur != l.tail; {
		ref := cur.loadRef()
		if !ref.marked {
			n++
		}
		cur = ref.next
	}
	return n
}

// Keys returns the live keys in ascending order. Diagnostic, same caveat as
// Len.
func (l *List) Keys() []uint64 {
	var keys []uint64
	for cur := l.head.loadRef().next; cur != l.tail; {
		ref := cur.loadRef()
		if !ref.marked {
			keys = append(keys, cur.key)
		}
		cur = ref.next
	}
	return keys
}

// Close tears down the list's hazard-pointer domain, unconditionally
// reclaiming every node still retired. The caller asserts that no mutator
// is concurrently active.
func (l *List) Close() {
	l.domain.Close()
}
