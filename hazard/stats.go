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

//go:build !hplist_noinstrument

// This file is the instrumentation hook: monotonic counters for retries,
// CAS attempts, traversal steps, and logical/physical deletion/construction
// counts, shared between this package (which owns NodesDestroyed, since it
// is the one invoking the deleter) and hplist (which owns the rest). Build
// with -tags hplist_noinstrument to compile every counter site to a no-op;
// see stats_noop.go.
package hazard

import "sync/atomic"

// Stats is a point-in-time snapshot of the instrumentation counters.
type Stats struct {
	Retries              uint64
	ConsistencyAborts    uint64
	TraversalSteps       uint64
	CASAttempts          uint64
	LogicalDeleteRetries uint64
	LogicalInsertRetries uint64
	NodesConstructed     uint64
	NodesDestroyed       uint64
}

func newStats() *Stats {
	return &Stats{}
}

func (s *Stats) snapshot() Stats {
	return Stats{
		Retries:              atomic.LoadUint64(&s.Retries),
		ConsistencyAborts:    atomic.LoadUint64(&s.ConsistencyAborts),
		TraversalSteps:       atomic.LoadUint64(&s.TraversalSteps),
		CASAttempts:          atomic.LoadUint64(&s.CASAttempts),
		LogicalDeleteRetries: atomic.LoadUint64(&s.LogicalDeleteRetries),
		LogicalInsertRetries: atomic.LoadUint64(&s.LogicalInsertRetries),
		NodesConstructed:     atomic.LoadUint64(&s.NodesConstructed),
		NodesDestroyed:       atomic.LoadUint64(&s.NodesDestroyed),
	}
}

func (s *Stats) bumpRetries()              { atomic.AddUint64(&s.Retries, 1) }
func (s *Stats) bumpConsistencyAborts()    { atomic.AddUint64(&s.ConsistencyAborts, 1) }
func (s *Stats) bumpTraversalSteps()       { atomic.AddUint64(&s.TraversalSteps, 1) }
func (s *Stats) bumpCASAttempts()          { atomic.AddUint64(&s.CASAttempts, 1) }
func (s *Stats) bumpLogicalDeleteRetries() { atomic.AddUint64(&s.LogicalDeleteRetries, 1) }
func (s *Stats) bumpLogicalInsertRetries() { atomic.AddUint64(&s.LogicalInsertRetries, 1) }
func (s *Stats) bumpNodesConstructed()     { atomic.AddUint64(&s.NodesConstructed, 1) }
func (s *Stats) bumpNodesDestroyed()       { atomic.AddUint64(&s.NodesDestroyed, 1) }

// BumpRetries exposes the retry counter to callers outside this package
// (the hplist find/insert/delete loops) without exporting the whole
// counters surface.
func (s *Stats) BumpRetries()              { s.bumpRetries() }
func (s *Stats) BumpConsistencyAborts()    { s.bumpConsistencyAborts() }
func (s *Stats) BumpTraversalSteps()       { s.bumpTraversalSteps() }
func (s *Stats) BumpCASAttempts()          { s.bumpCASAttempts() }
func (s *Stats) BumpLogicalDeleteRetries() { s.bumpLogicalDeleteRetries() }
func (s *Stats) BumpLogicalInsertRetries() { s.bumpLogicalInsertRetries() }
func (s *Stats) BumpNodesConstructed()     { s.bumpNodesConstructed() }
