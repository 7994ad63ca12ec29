// Package udma implements the micro-DMA controller: per-channel transfer
// descriptors, a central read/write pipeline against an L2 memory target,
// and the peripheral register shell, grounded on
// original_source/models/pulp/udma/udma_v2_impl.cpp.
package udma

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/jiangjiandong/gvsoc/internal/constants"
	"github.com/jiangjiandong/gvsoc/internal/errs"
	"github.com/jiangjiandong/gvsoc/internal/ioreq"
	"github.com/jiangjiandong/gvsoc/internal/logging"
	"github.com/jiangjiandong/gvsoc/internal/simhost"
)

type waitingReq struct {
	req     *ioreq.Request
	readyAt int64
}

// Observer receives uDMA transfer completion metrics. Defined locally
// rather than taken from the root package (which would cycle back through
// this one); any type whose method set matches — such as
// gvsoc.MetricsObserver — satisfies it.
type Observer interface {
	ObserveTransfer(bytes uint64, isWrite bool, latencyNs uint64, ok bool)
}

// Controller owns the peripheral shells, the shared L2 read-request pool,
// the write queue, and the latency-ordered waiting queue (spec §3 "uDMA
// controller").
type Controller struct {
	host simhost.Host
	log  *logging.Logger
	l2   ioreq.Target

	periphs []*Periph

	readFree *ring[*ioreq.Request]
	writeQ   []*ioreq.Request
	waiting  []waitingReq
	readyTX  []*Channel

	clockGating uint32

	strictClockGate bool
	observer        Observer

	ev *simhost.Event
}

// observeTransfer reports a completed or failed transfer to the build's
// observer, if one was configured (spec §8 / SPEC_FULL.md §10 metrics).
func (ctrl *Controller) observeTransfer(bytes uint64, isWrite bool, latencyNs uint64, ok bool) {
	if ctrl.observer != nil {
		ctrl.observer.ObserveTransfer(bytes, isWrite, latencyNs, ok)
	}
}

// Build validates cfg and constructs a Controller with one RX/TX channel
// pair per declared peripheral. Unsupported interface name/version
// combinations fail loudly (spec §6/§7) rather than silently defaulting.
func Build(host simhost.Host, log *logging.Logger, cfg Config, l2 ioreq.Target) (*Controller, error) {
	fifoSize := cfg.L2ReadFIFOSize
	if fifoSize <= 0 {
		fifoSize = constants.DefaultL2ReadFIFOSize
	}

	ctrl := &Controller{
		host:            host,
		log:             log,
		l2:              l2,
		strictClockGate: cfg.StrictClockGate,
		observer:        cfg.Observer,
	}

	ctrl.readFree = newRing[*ioreq.Request](fifoSize)
	for i := 0; i < fifoSize; i++ {
		ctrl.readFree.Push(&ioreq.Request{Data: make([]byte, 4)})
	}

	if cfg.NbPeriphs <= 0 {
		return nil, errs.NewError("udma.Build", errs.ErrCodeInvalidConfig,
			fmt.Sprintf("nb_periphs must be positive, got %d", cfg.NbPeriphs))
	}
	ctrl.periphs = make([]*Periph, cfg.NbPeriphs)
	for i := range ctrl.periphs {
		ctrl.periphs[i] = &Periph{ID: i}
	}

	names := make([]string, 0, len(cfg.Interfaces))
	for name := range cfg.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ic := cfg.Interfaces[name]
		wantVersion, supported := constants.SupportedInterfaceVersions[name]
		if !supported {
			return nil, errs.NewError("udma.Build", errs.ErrCodeUnsupportedIface,
				fmt.Sprintf("unsupported interface %q", name))
		}
		if wantVersion != ic.Version {
			return nil, errs.NewError("udma.Build", errs.ErrCodeUnsupportedIface,
				fmt.Sprintf("interface %q: unsupported version %d (want %d)", name, ic.Version, wantVersion))
		}

		factory := DefaultPeriphFactories[name]
		if f, ok := cfg.Factories[name]; ok && f != nil {
			factory = f
		}

		for _, id := range ic.IDs {
			if id < 0 || id >= len(ctrl.periphs) {
				return nil, errs.NewError("udma.Build", errs.ErrCodeInvalidConfig,
					fmt.Sprintf("interface %q: peripheral id %d out of range [0,%d)", name, id, len(ctrl.periphs)))
			}
			p := ctrl.periphs[id]
			p.Name = name
			p.Version = ic.Version
			p.RX = newChannel(ctrl, id*2, DirectionRX)
			p.TX = newChannel(ctrl, id*2+1, DirectionTX)
			if factory != nil {
				p.Custom = factory(id)
			}
		}
	}

	ctrl.ev = &simhost.Event{}
	ctrl.ev.Fire = ctrl.onEvent
	return ctrl, nil
}

// Req is the top-level uDMA register decode entry point (spec §4.7): an
// address below PERIPH_CONF_OFFSET dispatches to a peripheral window, an
// address within the controller config window updates clock gating, and
// everything else fails.
func (ctrl *Controller) Req(req *ioreq.Request) ioreq.Status {
	if req.Addr < constants.ConfOffset {
		// Only 4-byte accesses to peripheral ranges are honored (spec
		// §4.7); the controller-config range below applies its own,
		// narrower guard per register.
		if req.Size != 4 {
			return ioreq.StatusInvalid
		}
		idx := req.Addr / constants.PeriphStride
		if idx >= uint64(len(ctrl.periphs)) {
			ctrl.log.Warn("periph_req: unknown peripheral", "id", idx)
			return ioreq.StatusInvalid
		}
		return ctrl.periphReq(ctrl.periphs[idx], req.Addr%constants.PeriphStride, req)
	}

	confOffset := req.Addr - constants.ConfOffset
	if confOffset < constants.ConfSize {
		return ctrl.confReq(confOffset, req)
	}
	return ioreq.StatusInvalid
}

func (ctrl *Controller) confReq(offset uint64, req *ioreq.Request) ioreq.Status {
	switch offset {
	case constants.ConfCGOffset:
		if req.Size != 4 || len(req.Data) < 4 {
			return ioreq.StatusInvalid
		}
		if req.IsWrite {
			ctrl.clockGating = binary.LittleEndian.Uint32(req.Data)
			for i, p := range ctrl.periphs {
				p.ClockEnabled = ctrl.clockGating&(1<<uint(i)) != 0
			}
		} else {
			binary.LittleEndian.PutUint32(req.Data, ctrl.clockGating)
		}
		return ioreq.StatusOK
	case constants.ConfEvtinOffset:
		ctrl.log.Warn("EVTIN access: unimplemented")
		return ioreq.StatusInvalid
	default:
		return ioreq.StatusInvalid
	}
}

// periphReq routes a rebased peripheral-window access to the RX channel,
// the TX channel, or the custom region, honoring the clock-gate
// bug-compatible OK-on-gated-off behavior (spec §4.6/§9).
func (ctrl *Controller) periphReq(p *Periph, offset uint64, req *ioreq.Request) ioreq.Status {
	if !p.ClockEnabled {
		if ctrl.strictClockGate {
			return ioreq.StatusInvalid
		}
		// Bug-compatible: a gated-off peripheral silently accepts the
		// access without mutating any state. Some driver code depends on
		// this instead of checking the gate itself first.
		return ioreq.StatusOK
	}

	switch {
	case offset < constants.ChannelTXOffset:
		return ctrl.channelReg(p.RX, offset, req)
	case offset < constants.ChannelCustomOffset:
		return ctrl.channelReg(p.TX, offset-constants.ChannelTXOffset, req)
	default:
		if p.Custom == nil {
			return ioreq.StatusInvalid
		}
		return p.Custom(offset-constants.ChannelCustomOffset, req)
	}
}

func (ctrl *Controller) channelReg(ch *Channel, offset uint64, req *ioreq.Request) ioreq.Status {
	if ch == nil {
		return ioreq.StatusInvalid
	}
	switch offset {
	case constants.ChannelSaddrOffset:
		if req.IsWrite {
			ch.WriteSaddr(uint64(binary.LittleEndian.Uint32(req.Data)))
		} else {
			binary.LittleEndian.PutUint32(req.Data, uint32(ch.ReadSaddr()))
		}
		return ioreq.StatusOK
	case constants.ChannelSizeOffset:
		if req.IsWrite {
			ch.WriteSize(uint64(binary.LittleEndian.Uint32(req.Data)))
		} else {
			binary.LittleEndian.PutUint32(req.Data, uint32(ch.ReadSize()))
		}
		return ioreq.StatusOK
	case constants.ChannelCfgOffset:
		if req.IsWrite {
			return ch.WriteCfg(ctrl, binary.LittleEndian.Uint32(req.Data))
		}
		binary.LittleEndian.PutUint32(req.Data, ch.ReadCfg())
		return ioreq.StatusOK
	default:
		return ioreq.StatusInvalid
	}
}

// enqueueReady is called by a channel when its descriptor becomes current:
// TX channels queue for the read pipeline, RX channels are notified
// directly since they're peripheral-driven (spec §4.3).
func (ctrl *Controller) enqueueReady(ch *Channel) {
	if ch.Dir == DirectionTX {
		ctrl.readyTX = append(ctrl.readyTX, ch)
		ctrl.checkState()
	} else {
		ch.HandleReady(ctrl)
	}
}

func (ctrl *Controller) enqueueWrite(req *ioreq.Request) {
	ctrl.writeQ = append(ctrl.writeQ, req)
	ctrl.checkState()
}

// onEvent is the uDMA's single scheduled pipeline event, running the three
// ordered passes of spec §4.5 on every firing.
func (ctrl *Controller) onEvent() {
	ctrl.drainWrites()
	ctrl.issueReads()
	ctrl.deliverCompletions()
	ctrl.checkState()
}

// drainWrites is pass P1: pop one queued write and issue it to L2.
func (ctrl *Controller) drainWrites() {
	if len(ctrl.writeQ) == 0 {
		return
	}
	req := ctrl.writeQ[0]
	ctrl.writeQ = ctrl.writeQ[1:]
	if status := ctrl.l2.Req(req); status != ioreq.StatusOK {
		ctrl.log.Warn("l2 write rejected", "addr", req.Addr)
	}
}

// issueReads is pass P2: while a TX channel is ready and a free L2 read
// request is available, shape and issue one read.
func (ctrl *Controller) issueReads() {
	for len(ctrl.readyTX) > 0 && !ctrl.readFree.Empty() {
		ch := ctrl.readyTX[0]
		ctrl.readyTX = ctrl.readyTX[1:]

		req, _ := ctrl.readFree.Pop()
		end := ch.PrepareReq(req)
		if !end {
			ctrl.readyTX = append(ctrl.readyTX, ch)
		}

		now := int64(ctrl.host.Now())
		status := ctrl.l2.Req(req)
		if status != ioreq.StatusOK {
			ctrl.log.Warn("l2 read rejected", "addr", req.Addr)
			ctrl.readFree.Push(req)
			continue
		}
		// req.Latency is overwritten to hold the absolute ready cycle,
		// reusing the field the same way the original's push_from_latency
		// keys its insertion by latency+now+1.
		req.Latency = req.Latency + now + 1
		ctrl.waiting = insertWaiting(ctrl.waiting, waitingReq{req: req, readyAt: req.Latency})
	}
}

// deliverCompletions is pass P3: hand every completion whose ready cycle
// has arrived back to its owning channel.
func (ctrl *Controller) deliverCompletions() {
	now := int64(ctrl.host.Now())
	for len(ctrl.waiting) > 0 && ctrl.waiting[0].readyAt <= now {
		w := ctrl.waiting[0]
		ctrl.waiting = ctrl.waiting[1:]

		ch, _ := w.req.Arg[0].(*Channel)
		if ch == nil || ch.current == nil {
			ctrl.readFree.Push(w.req)
			continue
		}
		ch.current.ReceivedSize += int64(w.req.Size)
		ctrl.readFree.Push(w.req)
		if ch.current.ReceivedSize >= ch.current.TotalSize {
			ch.handleTransferEnd(ctrl)
		}
	}
}

// checkState re-arms the pipeline event at the earliest cycle more work is
// possible: one cycle out if writes are queued or a read can be issued
// immediately, or at the head waiting request's ready cycle (spec §4.5).
func (ctrl *Controller) checkState() {
	now := int64(ctrl.host.Now())
	armed := false
	delay := int64(0)

	if len(ctrl.writeQ) > 0 || (len(ctrl.readyTX) > 0 && !ctrl.readFree.Empty()) {
		armed = true
		delay = 1
	}
	if len(ctrl.waiting) > 0 {
		d := ctrl.waiting[0].readyAt - now
		if d < 0 {
			d = 0
		}
		if !armed || d < delay {
			delay = d
			armed = true
		}
	}
	if armed {
		ctrl.host.ReenqueueEvent(ctrl.ev, delay)
	}
}

func insertWaiting(list []waitingReq, w waitingReq) []waitingReq {
	i := len(list)
	for i > 0 && list[i-1].readyAt > w.readyAt {
		i--
	}
	list = append(list, waitingReq{})
	copy(list[i+1:], list[i:])
	list[i] = w
	return list
}

// Periph returns the peripheral shell at id, for test fixtures that need to
// drive PushData or read channel state directly.
func (ctrl *Controller) Periph(id int) *Periph {
	if id < 0 || id >= len(ctrl.periphs) {
		return nil
	}
	return ctrl.periphs[id]
}

// ReadPoolStats reports (free, waiting, capacity) for the read-request pool
// conservation invariant (spec §8).
func (ctrl *Controller) ReadPoolStats() (free, waiting, capacity int) {
	return ctrl.readFree.Len(), len(ctrl.waiting), ctrl.readFree.Cap()
}

var _ ioreq.Target = (*Controller)(nil)
