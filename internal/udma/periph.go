package udma

import (
	"encoding/binary"

	"github.com/jiangjiandong/gvsoc/internal/ioreq"
)

// CustomHandler serves the peripheral-specific register region beyond the
// generic RX/TX channel windows (spec §4.6).
type CustomHandler func(offset uint64, req *ioreq.Request) ioreq.Status

// PeriphFactory builds the CustomHandler for one peripheral instance. The
// core ships one generic, minimal body per supported interface family —
// enough to exercise clock-gating and the custom-register path — so a host
// can plug in a richer body later without touching the shell (spec
// §4.7 [FULL]).
type PeriphFactory func(id int) CustomHandler

// DefaultPeriphFactories covers the four interface names this core
// understands (spec §6). All four get the same minimal generic body: a
// small bank of read/write registers, since none of UART/SPIM/HYPER/CPI's
// real protocol semantics are in scope (spec §1 Non-goals).
var DefaultPeriphFactories = map[string]PeriphFactory{
	"uart":  newGenericCustomHandler,
	"spim":  newGenericCustomHandler,
	"hyper": newGenericCustomHandler,
	"cpi":   newGenericCustomHandler,
}

func newGenericCustomHandler(id int) CustomHandler {
	regs := make(map[uint64]uint32)
	return func(offset uint64, req *ioreq.Request) ioreq.Status {
		if req.IsWrite {
			regs[offset] = binary.LittleEndian.Uint32(req.Data)
			return ioreq.StatusOK
		}
		binary.LittleEndian.PutUint32(req.Data, regs[offset])
		return ioreq.StatusOK
	}
}

// Periph is a peripheral shell: an RX channel, a TX channel, and a
// peripheral-specific custom register block, gated by a clock-enable bit.
type Periph struct {
	ID      int
	Name    string
	Version int

	RX *Channel
	TX *Channel

	ClockEnabled bool
	Custom       CustomHandler
}
