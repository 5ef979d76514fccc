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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var modes = []struct {
	name string
	mode FindMode
}{
	{"Conservative", Conservative},
	{"Ordered", Ordered},
}

// Insert then contains.
func TestInsertThenContains(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			assert.True(t, l.Insert(h, 42))
			assert.True(t, l.Contains(h, 42))
			assert.False(t, l.Contains(h, 7))
		})
	}
}

// Insert, delete, contains.
func TestInsertDeleteThenContains(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			require.True(t, l.Insert(h, 42))
			require.True(t, l.Delete(h, 42))
			assert.False(t, l.Contains(h, 42))
		})
	}
}

// Inserting a present key fails and leaves the set unchanged.
func TestDuplicateInsertFails(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			require.True(t, l.Insert(h, 10))
			assert.False(t, l.Insert(h, 10))
			assert.Equal(t, 1, l.Len())
		})
	}
}

// Deleting an absent key fails and leaves the set unchanged.
func TestDeleteAbsentFails(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			require.True(t, l.Insert(h, 10))
			assert.False(t, l.Delete(h, 11))
			assert.Equal(t, []uint64{10}, l.Keys())
		})
	}
}

// Keys() is always ascending regardless of insertion order.
func TestKeysAreOrdered(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			for _, k := range []uint64{50, 10, 30, 20, 40} {
				require.True(t, l.Insert(h, k))
			}
			assert.Equal(t, []uint64{10, 20, 30, 40, 50}, l.Keys())
		})
	}
}

// The reserved sentinel keys panic rather than silently misbehave.
func TestSentinelKeysPanic(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			assert.Panics(t, func() { l.Insert(h, 0) })
			assert.Panics(t, func() { l.Insert(h, math.MaxUint64) })
			assert.Panics(t, func() { l.Delete(h, 0) })
			assert.Panics(t, func() { l.Contains(h, math.MaxUint64) })
		})
	}
}

// An empty list reports no keys and contains nothing.
func TestEmptyList(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			assert.Equal(t, 0, l.Len())
			assert.Nil(t, l.Keys())
			assert.False(t, l.Contains(h, 5))
		})
	}
}

// Reinserting a deleted key succeeds and is observable again.
func TestReinsertAfterDelete(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			require.True(t, l.Insert(h, 5))
			require.True(t, l.Delete(h, 5))
			assert.True(t, l.Insert(h, 5))
			assert.True(t, l.Contains(h, 5))
		})
	}
}

func TestManySequentialInsertsStayOrdered(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode})
			defer l.Close()
			h := l.AcquireHandle()

			keys := []uint64{77, 3, 912, 45, 1, 500, 88, 2, 999, 13}
			for _, k := range keys {
				require.True(t, l.Insert(h, k))
			}
			got := l.Keys()
			for i := 1; i < len(got); i++ {
				assert.Less(t, got[i-1], got[i])
			}
			assert.Equal(t, len(keys), l.Len())
		})
	}
}

func TestDeleteSplicesNodeOut(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode, Threshold: 0})
			defer l.Close()
			h := l.AcquireHandle()

			require.True(t, l.Insert(h, 1))
			require.True(t, l.Insert(h, 2))
			require.True(t, l.Insert(h, 3))

			require.True(t, l.Delete(h, 2))
			assert.Equal(t, []uint64{1, 3}, l.Keys())
		})
	}
}

// After every inserted key has been deleted and Close has run, construction
// and destruction counts must balance: nothing left stuck in a retire list,
// and nothing double-freed.
func TestNodeConstructionBalancesDestructionAfterClose(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			l := New(Config{Mode: m.mode, Threshold: 4})
			h := l.AcquireHandle()

			for key := uint64(1); key <= 200; key++ {
				require.True(t, l.Insert(h, key))
			}
			for key := uint64(1); key <= 200; key += 2 {
				require.True(t, l.Delete(h, key))
			}
			for key := uint64(201); key <= 300; key++ {
				require.True(t, l.Insert(h, key))
			}
			for key := uint64(1); key <= 300; key++ {
				l.Delete(h, key)
			}

			l.Close()

			stats := l.Stats()
			assert.Equal(t, stats.NodesConstructed, stats.NodesDestroyed)
		})
	}
}
