// Package gvsoc implements the simulation core of an address-decoding
// interconnect router and a micro-DMA controller, the two hardware models
// that sit at the heart of a larger system-on-chip virtual platform. The
// core never schedules its own time: it is driven by a discrete-event host
// that owns the cycle counter and the event queue (see Host below).
package gvsoc

import "github.com/jiangjiandong/gvsoc/internal/simhost"

// Cycle is an absolute simulation cycle count.
type Cycle = simhost.Cycle

// Event is an opaque handle a component schedules with the host and later
// receives back through its own Fire callback. The core never inspects an
// Event's fields beyond what it set itself.
type Event = simhost.Event

// Host is the discrete-event simulation host the core is driven by. It is
// the Go encoding of the external collaborator spec §1 calls out of scope:
// event scheduling, the clock-cycle counter, and trace sinks.
type Host = simhost.Host

// TraceSink is a named trace stream, standing in for the original's
// traces.new_trace per-component trace objects.
type TraceSink = simhost.TraceSink
