package hazard

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func deletedSet() (func(unsafe.Pointer), *sync.Map) {
	var deleted sync.Map
	return func(p unsafe.Pointer) { deleted.Store(p, true) }, &deleted
}

func TestProtectThenClearRemovesPublication(t *testing.T) {
	d := New(Config{MaxThreads: 4, Slots: 4})
	defer d.Close()

	h := d.AcquireHandle()
	x := new(int)
	p := unsafe.Pointer(x)

	h.Protect(HPCurr, p)
	assert.True(t, d.isProtectedByOthers(-1, p), "protect should be visible to any scanner, including owner excluded via -1")

	h.Clear()
	assert.False(t, d.isProtectedByOthers(-1, p))
}

func TestRetireWithoutProtectionReclaimsOnScan(t *testing.T) {
	deleter, deleted := deletedSet()
	d := New(Config{MaxThreads: 4, Slots: 4, Threshold: 0, Deleter: deleter})
	defer d.Close()

	h := d.AcquireHandle()
	x := new(int)
	p := unsafe.Pointer(x)

	h.Retire(p) // Threshold 0: scan runs immediately, nothing protects p.
	_, ok := deleted.Load(p)
	assert.True(t, ok, "unprotected retiree should be reclaimed on threshold-0 retire")
}

func TestRetireStaysLiveWhileProtectedByAnotherThread(t *testing.T) {
	deleter, deleted := deletedSet()
	d := New(Config{MaxThreads: 4, Slots: 4, Threshold: 0, Deleter: deleter})
	defer d.Close()

	owner := d.AcquireHandle()
	protector := d.AcquireHandle()

	x := new(int)
	p := unsafe.Pointer(x)
	protector.Protect(HPCurr, p)

	owner.Retire(p)
	_, ok := deleted.Load(p)
	assert.False(t, ok, "retiree protected by another thread must survive the scan")

	protector.Clear()
	owner.Scan()
	_, ok = deleted.Load(p)
	assert.True(t, ok, "retiree should be reclaimed once protection is cleared and a scan runs")
}

func TestOwnProtectionDoesNotBlockReclaim(t *testing.T) {
	// A thread never scans against its own slots: isProtectedByOthers
	// excludes owner, since a thread publishing its own hazard pointer
	// for a retiree it just retired shouldn't keep that retiree alive.
	deleter, deleted := deletedSet()
	d := New(Config{MaxThreads: 4, Slots: 4, Threshold: 0, Deleter: deleter})
	defer d.Close()

	h := d.AcquireHandle()
	x := new(int)
	p := unsafe.Pointer(x)
	h.Protect(HPCurr, p)
	h.Retire(p)

	_, ok := deleted.Load(p)
	assert.True(t, ok, "a thread's own hazard slot doesn't protect its own retiree from its own scan")
}

func TestThresholdDefersScan(t *testing.T) {
	deleter, deleted := deletedSet()
	d := New(Config{MaxThreads: 4, Slots: 4, Threshold: 3, Deleter: deleter})
	defer d.Close()

	h := d.AcquireHandle()
	ptrs := make([]unsafe.Pointer, 3)
	for i := range ptrs {
		ptrs[i] = unsafe.Pointer(new(int))
	}

	h.Retire(ptrs[0])
	h.Retire(ptrs[1])
	for _, p := range ptrs[:2] {
		_, ok := deleted.Load(p)
		assert.False(t, ok, "scan should not run before the threshold is reached")
	}

	h.Retire(ptrs[2]) // crosses Threshold=3
	for _, p := range ptrs {
		_, ok := deleted.Load(p)
		assert.True(t, ok)
	}
}

func TestCloseReclaimsEveryRemainingRetiree(t *testing.T) {
	deleter, deleted := deletedSet()
	d := New(Config{MaxThreads: 4, Slots: 4, Threshold: 100, Deleter: deleter})
	h := d.AcquireHandle()

	ptrs := []unsafe.Pointer{unsafe.Pointer(new(int)), unsafe.Pointer(new(int))}
	protector := d.AcquireHandle()
	protector.Protect(HPCurr, ptrs[0]) // even protected ones must go at Close.

	for _, p := range ptrs {
		h.Retire(p)
	}
	d.Close()

	for _, p := range ptrs {
		_, ok := deleted.Load(p)
		assert.True(t, ok, "Close must reclaim every retired pointer unconditionally")
	}
}

func TestMaxThreadsExceededPanics(t *testing.T) {
	d := New(Config{MaxThreads: 1, Slots: 4})
	defer d.Close()

	d.AcquireHandle()
	assert.Panics(t, func() { d.AcquireHandle() })
}

func TestBackgroundScanReclaimsIdleRetirees(t *testing.T) {
	deleter, deleted := deletedSet()
	d := New(Config{
		MaxThreads:   4,
		Slots:        4,
		Threshold:    1 << 20, // effectively disable the inline threshold
		Deleter:      deleter,
		ScanInterval: 5 * time.Millisecond,
	})
	defer d.Close()

	h := d.AcquireHandle()
	p := unsafe.Pointer(new(int))
	h.Retire(p)

	require.Eventually(t, func() bool {
		_, ok := deleted.Load(p)
		return ok
	}, time.Second, 5*time.Millisecond, "background scanner should eventually reclaim an unprotected retiree")
}

func TestIndexedStrategyBehavesLikeArrayStrategy(t *testing.T) {
	for _, strategy := range []RetireStrategy{ArrayRetire, IndexedRetire} {
		deleter, deleted := deletedSet()
		d := New(Config{MaxThreads: 4, Slots: 4, Threshold: 0, Strategy: strategy, Deleter: deleter})

		owner := d.AcquireHandle()
		protector := d.AcquireHandle()

		protected := unsafe.Pointer(new(int))
		unprotected := unsafe.Pointer(new(int))
		protector.Protect(HPCurr, protected)

		owner.Retire(protected)
		owner.Retire(unprotected)

		_, protectedDeleted := deleted.Load(protected)
		_, unprotectedDeleted := deleted.Load(unprotected)
		assert.False(t, protectedDeleted, "strategy %v: protected retiree reclaimed early", strategy)
		assert.True(t, unprotectedDeleted, "strategy %v: unprotected retiree not reclaimed", strategy)

		protector.Clear()
		owner.Scan()
		_, protectedDeleted = deleted.Load(protected)
		assert.True(t, protectedDeleted, "strategy %v: retiree not reclaimed once unprotected", strategy)

		d.Close()
	}
}
