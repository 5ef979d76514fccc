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

// Package hplist implements a Harris/Michael-style lock-free ordered linked
// set of uint64 keys, reclaiming memory through the hazard-pointer domain in
// the sibling hazard package instead of leaving it to the garbage collector
// alone.
//
// Every node carries a mark bit alongside its successor pointer (the
// markedRef in node.go); a set mark bit means the node is logically deleted
// but may still be physically reachable. find walks past marked nodes,
// opportunistically splicing them out of the list and handing them to the
// hazard domain's retire/scan machinery rather than freeing them outright -
// a concurrent reader may still be mid-dereference of a node this thread
// just unlinked.
//
// Two find disciplines are available, chosen once at New time via
// Config.Mode:
//
//   - Conservative unlinks one marked node per CAS as it's encountered.
//   - Ordered tracks runs of consecutive marked nodes and splices an entire
//     run out with a single CAS, paying for an indexed retire list (an
//     rbtree keyed by pointer value) so the resulting reclamation scan
//     isn't quadratic in how many nodes a run skips.
//
// A goroutine that wants to call Insert, Delete, or Contains first calls
// AcquireHandle once and reuses the returned *hazard.Handle for the rest of
// its lifetime; Go has no thread-local storage to hide this behind, so the
// Handle is the explicit stand-in for what a pthread-based original would
// keep in per-thread state.
package hplist
