package udma

import (
	"sort"

	"github.com/jiangjiandong/gvsoc/internal/simhost"
)

// testHost is a minimal scriptable simhost.Host for udma package tests,
// mirroring the shape of the root package's FakeHost without importing it
// (importing the root package from here would cycle back through it).
type testHost struct {
	now       int64
	nextID    int
	pending   []*testEvent
	triggered []int
	traces    []string
}

type testEvent struct {
	seq    int
	fireAt int64
	ev     *simhost.Event
}

func newTestHost() *testHost { return &testHost{} }

func (h *testHost) Now() simhost.Cycle { return simhost.Cycle(h.now) }

func (h *testHost) EnqueueEvent(ev *simhost.Event, delayCycles int64) {
	h.nextID++
	h.pending = append(h.pending, &testEvent{seq: h.nextID, fireAt: h.now + delayCycles, ev: ev})
}

func (h *testHost) ReenqueueEvent(ev *simhost.Event, delayCycles int64) {
	kept := h.pending[:0]
	for _, pe := range h.pending {
		if pe.ev != ev {
			kept = append(kept, pe)
		}
	}
	h.pending = kept
	h.nextID++
	h.pending = append(h.pending, &testEvent{seq: h.nextID, fireAt: h.now + delayCycles, ev: ev})
}

func (h *testHost) TriggerEvent(id int) {
	h.triggered = append(h.triggered, id)
}

func (h *testHost) Trace() simhost.TraceSink { return (*testTrace)(h) }

type testTrace testHost

func (t *testTrace) Debugf(component, format string, args ...any) {}
func (t *testTrace) Warnf(component, format string, args ...any) {
	h := (*testHost)(t)
	h.traces = append(h.traces, component)
}

// Step advances by n cycles, firing every due event in (cycle, insertion)
// order, same semantics as the root package's FakeHost.Step.
func (h *testHost) Step(n int64) {
	target := h.now + n
	for {
		sort.SliceStable(h.pending, func(i, j int) bool {
			if h.pending[i].fireAt != h.pending[j].fireAt {
				return h.pending[i].fireAt < h.pending[j].fireAt
			}
			return h.pending[i].seq < h.pending[j].seq
		})
		var due *testEvent
		if len(h.pending) > 0 && h.pending[0].fireAt <= target {
			due = h.pending[0]
			h.pending = h.pending[1:]
			h.now = due.fireAt
		}
		if due == nil {
			break
		}
		if due.ev != nil && due.ev.Fire != nil {
			due.ev.Fire()
		}
	}
	h.now = target
}

var _ simhost.Host = (*testHost)(nil)
