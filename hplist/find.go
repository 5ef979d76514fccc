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
	"unsafe"

	"github.com/dijkstracula/hplist/hazard"
)

// findResult is what both find disciplines hand back to Insert/Delete/
// Contains: the live predecessor and its last-observed ref (for the CAS a
// caller is about to attempt), the position a key of interest would occupy,
// and whether that position holds an exact match.
type findResult struct {
	pred    *node
	predRef *markedRef
	curr    *node
	currRef *markedRef
	found   bool
}

// find dispatches to the discipline this list was configured with. The
// choice between the conservative and ordered variants is tied to
// List.mode at construction, never decided per-call, so a single list never
// mixes the two.
func (l *List) find(h *hazard.Handle, key uint64) findResult {
	if l.mode == Ordered {
		return l.findOrdered(h, key)
	}
	return l.findConservative(h, key)
}

// findConservative is the basic find: publish HPCurr before trusting curr,
// publish HPNext before trusting curr's successor, and after every
// publication re-read the shared location the pointer came from to confirm
// it hasn't changed - publish, then validate. Marked nodes encountered along
// the way are opportunistically unlinked one at a time and retired.
func (l *List) findConservative(h *hazard.Handle, key uint64) findResult {
retry:
	pred := l.head
	predRef := pred.loadRef()
	curr := predRef.next
	h.Protect(hazard.HPCurr, unsafe.Pointer(curr))
	if pred.loadRef() != predRef {
		goto retry
	}

	for curr != l.tail {
		assertLive(curr)
		currRef := curr.loadRef()
		next := currRef.next
		h.Protect(hazard.HPNext, unsafe.Pointer(next))
		if curr.loadRef() != currRef {
			goto retry
		}
		l.stats.BumpTraversalSteps()

		if currRef.marked {
			newRef := &markedRef{next: next, marked: false}
			l.stats.BumpCASAttempts()
			if !pred.next.CompareAndSwap(predRef, newRef) {
				l.stats.BumpRetries()
				goto retry
			}
			h.Retire(unsafe.Pointer(curr))
			predRef = newRef
			curr = next
			h.Protect(hazard.HPCurr, unsafe.Pointer(curr))
			if pred.loadRef() != predRef {
				goto retry
			}
			continue
		}

		if curr.key >= key {
			return findResult{pred: pred, predRef: predRef, curr: curr, currRef: currRef, found: curr.key == key}
		}

		pred = curr
		predRef = currRef
		curr = next
		h.Protect(hazard.HPPrev, unsafe.Pointer(pred))
		h.Protect(hazard.HPCurr, unsafe.Pointer(curr))
		if pred.loadRef() != predRef {
			goto retry
		}
	}
	return findResult{pred: pred, predRef: predRef, curr: curr, currRef: nil, found: false}
}

// findOrdered additionally publishes HPStart (the traversal's origin -
// always the head sentinel here, since this implementation doesn't cache a
// cursor across calls) and, on encountering a run of consecutive marked
// nodes, splices the whole run out with a single CAS instead of one node at
// a time. Every node the run skips over is retired together once the splice
// succeeds.
func (l *List) findOrdered(h *hazard.Handle, key uint64) findResult {
retry:
	start := l.head
	h.Protect(hazard.HPStart, unsafe.Pointer(start))

	pred := start
	predRef := pred.loadRef()
	h.Protect(hazard.HPPrev, unsafe.Pointer(pred))
	curr := predRef.next
	h.Protect(hazard.HPCurr, unsafe.Pointer(curr))
	if pred.loadRef() != predRef {
		goto retry
	}

	for curr != l.tail {
		assertLive(curr)
		currRef := curr.loadRef()
		l.stats.BumpTraversalSteps()

		if !currRef.marked {
			if curr.key >= key {
				return findResult{pred: pred, predRef: predRef, curr: curr, currRef: currRef, found: curr.key == key}
			}
			pred = curr
			predRef = currRef
			curr = currRef.next
			h.Protect(hazard.HPPrev, unsafe.Pointer(pred))
			h.Protect(hazard.HPCurr, unsafe.Pointer(curr))
			if pred.loadRef() != predRef {
				goto retry
			}
			continue
		}

		// A run of marked nodes starts at curr. Walk it, publishing HP_NEXT
		// as we go, until the first unmarked successor (or the tail).
		runEnd := curr
		runEndRef := currRef
		for runEndRef.marked && runEnd != l.tail {
			next := runEndRef.next
			h.Protect(hazard.HPNext, unsafe.Pointer(next))
			runEnd = next
			if runEnd == l.tail {
				runEndRef = nil
				break
			}
			assertLive(runEnd)
			runEndRef = runEnd.loadRef()
		}

		newRef := &markedRef{next: runEnd, marked: false}
		l.stats.BumpCASAttempts()
		if !pred.next.CompareAndSwap(predRef, newRef) {
			l.stats.BumpRetries()
			goto retry
		}
		for n := curr; n != runEnd; {
			skippedRef := n.loadRef()
			h.Retire(unsafe.Pointer(n))
			n = skippedRef.next
		}
		predRef = newRef
		curr = runEnd
		h.Protect(hazard.HPCurr, unsafe.Pointer(curr))
		if pred.loadRef() != predRef {
			goto retry
		}
	}
	return findResult{pred: pred, predRef: predRef, curr: curr, currRef: nil, found: false}
}
