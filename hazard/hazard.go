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

// Package hazard implements a hazard-pointer domain (HPD): the publication
// slots a thread uses to announce "I am about to dereference this pointer",
// the per-thread retired-object registries, and the scan that decides when a
// retired object is safe to hand to a user deleter.
//
// A goroutine that wants to participate acquires a Handle once and reuses it
// for every call into the domain - Go has no thread-local storage, so the
// Handle is the explicit stand-in for "the current thread".
package hazard

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/dijkstracula/hplist/internal/tid"
)

// Canonical hazard slot indices for the ordered list built on top of this
// domain. DefaultSlots (5) covers all of them plus one spare; a caller that
// needs more scratch room can configure more.
const (
	HPNext = iota
	HPCurr
	HPPrev
	HPStart
)

// DefaultSlots covers HPNext/HPCurr/HPPrev/HPStart, with one spare slot for
// callers that want scratch room.
const DefaultSlots = 5

// DefaultMaxThreads bounds the dense thread-id table.
const DefaultMaxThreads = 128

// RetireStrategy selects the shape of each thread's retire list.
type RetireStrategy int

const (
	// ArrayRetire keeps a dense slice per thread that grows as needed (no
	// capacity bound is enforced); scan is
	// O(retired * threads * slots), checked by probing every other
	// thread's slots for each retiree.
	ArrayRetire RetireStrategy = iota
	// IndexedRetire keeps an ordered index (rbtree) per thread; scan
	// transposes the loops, walking every other thread's slots once and
	// testing each published value against the local index.
	IndexedRetire
)

// Config tunes a Domain. New fills zero-valued Slots, MaxThreads and Deleter
// with defaults (Config.withDefaults), following the same
// top-level-tuning-constants style this package uses elsewhere rather than a
// builder API.
type Config struct {
	// Slots is the number of hazard slots each thread owns.
	Slots int
	// MaxThreads is the compile-time bound on participants.
	MaxThreads int
	// Threshold is the retire-list size that triggers a scan: retire()
	// runs a scan once a thread's retire list reaches this many entries.
	// 0 means scan on every retire; the classical textbook bound is
	// MaxThreads*Slots, available as Config.ClassicalThreshold().
	Threshold int
	// Strategy selects the retire-list shape.
	Strategy RetireStrategy
	// Deleter frees a retired pointer. It must not reference the domain
	// or the list the pointer came from, and it is trusted: a panicking
	// or blocking deleter is a caller bug, not something this package
	// guards against.
	Deleter func(unsafe.Pointer)
	// ScanInterval, if non-zero, runs a background goroutine that scans
	// every participating thread's retire list on this cadence, in
	// addition to the inline threshold-triggered scan from retire. It
	// exists for workloads whose retire() calls taper off before a
	// low-traffic thread's retire list drains on its own.
	ScanInterval time.Duration
}

// ClassicalThreshold returns MaxThreads*Slots, the textbook default scan
// threshold.
func (c Config) ClassicalThreshold() int {
	return c.MaxThreads * c.Slots
}

func (c Config) withDefaults() Config {
	if c.Slots <= 0 {
		c.Slots = DefaultSlots
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = DefaultMaxThreads
	}
	if c.Deleter == nil {
		c.Deleter = func(unsafe.Pointer) {}
	}
	return c
}

const cacheLinePad = 64

// hazardRow is one thread's slot array, padded to its own cache line so
// adjacent threads publishing/clearing slots don't false-share.
type hazardRow struct {
	slots []unsafe.Pointer
	_     [cacheLinePad]byte
}

type retireList interface {
	add(p unsafe.Pointer)
	len() int
}

// Domain is the reclamation substrate shared by every participant. Create
// one per list, or share one across lists that tag their retired objects so
// a single deleter can tell them apart.
type Domain struct {
	cfg   Config
	tids  *tid.Allocator
	rows  []hazardRow
	lists []retireList
	stats *Stats

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Domain. cfg.Deleter is invoked, possibly from any
// participant's goroutine, once a retired pointer is proven unreachable.
func New(cfg Config) *Domain {
	cfg = cfg.withDefaults()
	d := &Domain{
		cfg:   cfg,
		tids:  tid.NewAllocator(),
		rows:  make([]hazardRow, cfg.MaxThreads),
		lists: make([]retireList, cfg.MaxThreads),
		stats: newStats(),
		stop:  make(chan struct{}),
	}
	for i := range d.rows {
		d.rows[i].slots = make([]unsafe.Pointer, cfg.Slots)
	}
	for i := range d.lists {
		d.lists[i] = newRetireList(cfg.Strategy)
	}
	if cfg.ScanInterval > 0 {
		d.wg.Add(1)
		go d.backgroundScan()
	}
	return d
}

func newRetireList(strategy RetireStrategy) retireList {
	if strategy == IndexedRetire {
		return newIndexedRetireList()
	}
	return newArrayRetireList()
}

// Stats returns a snapshot of the instrumentation counters.
func (d *Domain) Stats() Stats {
	return d.stats.snapshot()
}

// StatsRef exposes the live counters so a collaborating package (hplist)
// can bump the find/insert/delete-side counters this package doesn't own.
func (d *Domain) StatsRef() *Stats {
	return d.stats
}

// Close stops any background scan goroutine and reclaims every still-retired
// pointer by invoking the deleter, regardless of protection. The caller
// asserts that no mutator is active.
func (d *Domain) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()

	for _, l := range d.lists {
		switch list := l.(type) {
		case *arrayRetireList:
			list.mu.Lock()
			for _, p := range list.items {
				d.cfg.Deleter(p)
				d.stats.bumpNodesDestroyed()
			}
			list.items = nil
			list.mu.Unlock()
		case *indexedRetireList:
			list.mu.Lock()
			list.tree.WalkAndDestroy(func(p unsafe.Pointer) {
				d.cfg.Deleter(p)
				d.stats.bumpNodesDestroyed()
			})
			list.items = nil
			list.mu.Unlock()
		}
	}
}

func (d *Domain) backgroundScan() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			n := d.tids.Count()
			for id := 0; id < n; id++ {
				d.scan(id)
			}
		}
	}
}

// Handle is a participant's lease on one row of the domain's hazard slots
// and one private retire list. Acquire exactly one per goroutine and reuse
// it for every call that goroutine makes - the underlying id is reserved for
// the Handle's entire lifetime and never reclaimed.
type Handle struct {
	d  *Domain
	id int
}

// AcquireHandle binds the calling goroutine to a dense thread id. Panics if
// the domain's MaxThreads bound is exceeded - that's a programmer misuse,
// not a recoverable error.
func (d *Domain) AcquireHandle() *Handle {
	cache := tid.NewCache()
	id := d.tids.Of(cache, d.cfg.MaxThreads)
	return &Handle{d: d, id: id}
}

// ID returns the dense thread id backing this handle, for diagnostics.
func (h *Handle) ID() int { return h.id }

// Protect publishes p into slot i with release ordering and returns p. The
// caller must re-read the source p was obtained from and retry if it no
// longer names p. Wait-free, population-oblivious.
func (h *Handle) Protect(slot int, p unsafe.Pointer) unsafe.Pointer {
	atomic.StorePointer(&h.d.rows[h.id].slots[slot], p)
	return p
}

// ProtectRelease is Protect under an explicit release-ordering name, kept
// distinct for call sites where the acquire/release pairing is the point
// being documented. Go's sync/atomic stores are already at least as strong
// as release, so the implementation is identical.
func (h *Handle) ProtectRelease(slot int, p unsafe.Pointer) unsafe.Pointer {
	return h.Protect(slot, p)
}

// Clear writes zero into every slot this handle owns. Wait-free, bounded by
// the domain's slot count.
func (h *Handle) Clear() {
	row := &h.d.rows[h.id]
	for i := range row.slots {
		atomic.StorePointer(&row.slots[i], nil)
	}
}

// Retire appends p to this handle's retire list and, once the list has
// crossed the configured threshold, runs a scan. Wait-free,
// population-oblivious up to the point a scan is triggered; the scan itself
// is the one step in this package that isn't bounded by a small constant.
func (h *Handle) Retire(p unsafe.Pointer) {
	d := h.d
	list := d.lists[h.id]
	list.add(p)
	threshold := d.cfg.Threshold
	if threshold <= 0 || list.len() >= threshold {
		d.scan(h.id)
	}
}

// Scan forces an immediate reclamation pass over this handle's retire list.
// Exposed so callers (and tests) can drive scans without waiting on the
// threshold or the background ticker.
func (h *Handle) Scan() {
	h.d.scan(h.id)
}

func (d *Domain) scan(owner int) {
	switch d.cfg.Strategy {
	case IndexedRetire:
		d.scanIndexed(owner)
	default:
		d.scanArray(owner)
	}
}

func (d *Domain) isProtectedByOthers(owner int, p unsafe.Pointer) bool {
	for t := 0; t < d.cfg.MaxThreads; t++ {
		if t == owner {
			continue
		}
		row := &d.rows[t]
		for s := range row.slots {
			if atomic.LoadPointer(&row.slots[s]) == p {
				return true
			}
		}
	}
	return false
}
