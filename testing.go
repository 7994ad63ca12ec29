package gvsoc

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// FakeHost is an in-process Host double for tests: a scriptable cycle
// counter, an event queue that fires in cycle order, and a trace buffer
// that captures every Debugf/Warnf call instead of printing it. It plays
// the same role in this module's tests that the teacher's MockBackend
// plays for block-device backends.
type FakeHost struct {
	mu sync.Mutex

	now     Cycle
	nextID  int
	pending []*fakeEvent

	triggered []int
	traces    []TraceLine

	dispatching atomic.Bool
}

type fakeEvent struct {
	seq   int
	fireAt Cycle
	ev    *Event
}

// TraceLine is one captured Debugf/Warnf call.
type TraceLine struct {
	Level     string
	Component string
	Message   string
}

// NewFakeHost creates a FakeHost starting at cycle 0.
func NewFakeHost() *FakeHost {
	h := &FakeHost{}
	return h
}

func (h *FakeHost) Now() Cycle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *FakeHost) EnqueueEvent(ev *Event, delayCycles int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.pending = append(h.pending, &fakeEvent{
		seq:    h.nextID,
		fireAt: h.now + Cycle(delayCycles),
		ev:     ev,
	})
}

func (h *FakeHost) ReenqueueEvent(ev *Event, delayCycles int64) {
	h.mu.Lock()
	kept := h.pending[:0]
	for _, pe := range h.pending {
		if pe.ev != ev {
			kept = append(kept, pe)
		}
	}
	h.pending = kept
	h.nextID++
	h.pending = append(h.pending, &fakeEvent{
		seq:    h.nextID,
		fireAt: h.now + Cycle(delayCycles),
		ev:     ev,
	})
	h.mu.Unlock()
}

func (h *FakeHost) TriggerEvent(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.triggered = append(h.triggered, id)
}

func (h *FakeHost) Trace() TraceSink {
	return (*fakeTraceSink)(h)
}

type fakeTraceSink FakeHost

func (s *fakeTraceSink) Debugf(component, format string, args ...any) {
	h := (*FakeHost)(s)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.traces = append(h.traces, TraceLine{Level: "DEBUG", Component: component, Message: fmt.Sprintf(format, args...)})
}

func (s *fakeTraceSink) Warnf(component, format string, args ...any) {
	h := (*FakeHost)(s)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.traces = append(h.traces, TraceLine{Level: "WARNING", Component: component, Message: fmt.Sprintf(format, args...)})
}

// Step advances the cycle counter by n cycles, firing every pending event
// whose scheduled cycle falls at or before the new "now", in (cycle, then
// insertion order) order. Panics if called re-entrantly from within an
// event's own Fire callback — a single-threaded discrete-event core should
// never recursively dispatch.
func (h *FakeHost) Step(n int64) {
	if !h.dispatching.CompareAndSwap(false, true) {
		panic("gvsoc: re-entrant dispatch into FakeHost.Step")
	}
	defer h.dispatching.Store(false)

	h.mu.Lock()
	target := h.now + Cycle(n)
	h.mu.Unlock()

	for {
		h.mu.Lock()
		sort.SliceStable(h.pending, func(i, j int) bool {
			if h.pending[i].fireAt != h.pending[j].fireAt {
				return h.pending[i].fireAt < h.pending[j].fireAt
			}
			return h.pending[i].seq < h.pending[j].seq
		})
		var due *fakeEvent
		if len(h.pending) > 0 && h.pending[0].fireAt <= target {
			due = h.pending[0]
			h.pending = h.pending[1:]
			h.now = due.fireAt
		}
		h.mu.Unlock()

		if due == nil {
			break
		}
		if due.ev != nil && due.ev.Fire != nil {
			due.ev.Fire()
		}
	}

	h.mu.Lock()
	h.now = target
	h.mu.Unlock()
}

// Triggered returns the ids passed to TriggerEvent, in call order.
func (h *FakeHost) Triggered() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.triggered))
	copy(out, h.triggered)
	return out
}

// Traces returns every captured trace line, in call order.
func (h *FakeHost) Traces() []TraceLine {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TraceLine, len(h.traces))
	copy(out, h.traces)
	return out
}

// PendingCount reports how many events are scheduled but not yet fired.
func (h *FakeHost) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Reset clears all recorded state and rewinds the cycle counter to 0.
func (h *FakeHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = 0
	h.nextID = 0
	h.pending = nil
	h.triggered = nil
	h.traces = nil
}

var _ Host = (*FakeHost)(nil)
