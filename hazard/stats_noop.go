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

//go:build hplist_noinstrument

package hazard

// Stats is kept shape-compatible with the instrumented build so callers
// don't need a build tag of their own; every field simply never moves.
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

func newStats() *Stats { return &Stats{} }

func (s *Stats) snapshot() Stats { return Stats{} }

func (s *Stats) bumpNodesDestroyed() {}

func (s *Stats) BumpRetries()              {}
func (s *Stats) BumpConsistencyAborts()    {}
func (s *Stats) BumpTraversalSteps()       {}
func (s *Stats) BumpCASAttempts()          {}
func (s *Stats) BumpLogicalDeleteRetries() {}
func (s *Stats) BumpLogicalInsertRetries() {}
func (s *Stats) BumpNodesConstructed()     {}
