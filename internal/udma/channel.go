package udma

import (
	"fmt"
	"time"

	"github.com/jiangjiandong/gvsoc/internal/constants"
	"github.com/jiangjiandong/gvsoc/internal/ioreq"
	"github.com/jiangjiandong/gvsoc/internal/logging"
	"github.com/jiangjiandong/gvsoc/internal/simhost"
)

// Direction distinguishes a memory-write channel (RX: peripheral -> L2)
// from a memory-read channel (TX: L2 -> peripheral).
type Direction int

const (
	DirectionRX Direction = iota
	DirectionTX
)

func (d Direction) String() string {
	if d == DirectionRX {
		return "rx"
	}
	return "tx"
}

// Channel drives one transfer descriptor at a time through
// free -> pending -> current -> free (spec §4.3).
type Channel struct {
	ID  int
	Dir Direction

	log *logging.Logger
	ev  *simhost.Event

	free    *ring[*Transfer]
	pending *ring[*Transfer]
	current *Transfer

	saddr          uint64
	size           uint64
	continuousMode bool
	sizeCode       TransferSizeCode

	pendingWord      [4]byte
	pendingByteIndex int
}

func newChannel(ctrl *Controller, id int, dir Direction) *Channel {
	c := &Channel{
		ID:      id,
		Dir:     dir,
		log:     ctrl.log.Named(fmt.Sprintf("ch%d/%s", id, dir)),
		free:    newRing[*Transfer](constants.ChannelDescriptorSlots),
		pending: newRing[*Transfer](constants.ChannelDescriptorSlots),
	}
	for i := 0; i < constants.ChannelDescriptorSlots; i++ {
		c.free.Push(&Transfer{})
	}
	c.ev = &simhost.Event{}
	c.ev.Fire = func() { c.onEvent(ctrl) }
	return c
}

// ReadSaddr/WriteSaddr, ReadSize/WriteSize expose the shadow registers.
func (c *Channel) ReadSaddr() uint64     { return c.saddr }
func (c *Channel) WriteSaddr(v uint64)   { c.saddr = v }
func (c *Channel) ReadSize() uint64      { return c.size }
func (c *Channel) WriteSize(v uint64)    { c.size = v }
func (c *Channel) ContinuousEnabled() bool { return c.continuousMode }

// ReadCfg packs {CONT, SIZE, EN (pending non-empty), SHADOW (pending full)}.
func (c *Channel) ReadCfg() uint32 {
	var v uint32
	if c.continuousMode {
		v |= 1 << constants.CfgContBit
	}
	v |= uint32(c.sizeCode) << constants.CfgSizeBit
	if !c.pending.Empty() {
		v |= 1 << constants.CfgEnBit
	}
	if c.pending.Full() {
		v |= 1 << constants.CfgShadowBit
	}
	return v
}

// WriteCfg unpacks a CFG write. CLEAR always fails (unimplemented, spec
// §4.6/§9); EN triggers enqueue_transfer.
func (c *Channel) WriteCfg(ctrl *Controller, v uint32) ioreq.Status {
	if v&(1<<constants.CfgClearBit) != 0 {
		c.log.Warn("CFG.CLEAR: unimplemented")
		return ioreq.StatusInvalid
	}
	c.continuousMode = v&(1<<constants.CfgContBit) != 0
	c.sizeCode = TransferSizeCode((v >> constants.CfgSizeBit) & 0x3)
	if v&(1<<constants.CfgEnBit) != 0 {
		c.enqueueTransfer(ctrl)
	}
	return ioreq.StatusOK
}

// enqueueTransfer pops a free descriptor and arms it from the shadow
// registers. Drops the request with a warning if both slots are busy.
func (c *Channel) enqueueTransfer(ctrl *Controller) {
	t, ok := c.free.Pop()
	if !ok {
		c.log.Warn("enqueue_transfer dropped: channel busy")
		ctrl.observeTransfer(c.size, c.Dir == DirectionRX, 0, false)
		return
	}
	t.arm(c.saddr, c.size, c.sizeCode, c.continuousMode, c)
	c.pending.Push(t)
	c.checkState(ctrl)
}

// checkState arms the channel's own event one cycle out if a pending
// descriptor is waiting to become current.
func (c *Channel) checkState(ctrl *Controller) {
	if c.current == nil && !c.pending.Empty() {
		ctrl.host.ReenqueueEvent(c.ev, 1)
	}
}

func (c *Channel) onEvent(ctrl *Controller) {
	t, ok := c.pending.Pop()
	if !ok {
		return
	}
	c.current = t
	ctrl.enqueueReady(c)
}

// handleTransferEnd returns the current descriptor to the free pool,
// reports it to the controller's observer, signals the host, and
// re-checks for more pending work.
func (c *Channel) handleTransferEnd(ctrl *Controller) {
	t := c.current
	c.current = nil
	if t != nil {
		ctrl.observeTransfer(uint64(t.TotalSize), c.Dir == DirectionRX, uint64(time.Since(t.ArmedAt).Nanoseconds()), true)
		c.free.Push(t)
	}
	ctrl.host.TriggerEvent(c.ID)
	c.checkState(ctrl)
}

// HandleReady is called when an RX channel becomes current; data arrives
// via PushData from the peripheral, not through this hook.
func (c *Channel) HandleReady(ctrl *Controller) {
	c.log.Debug("rx channel ready")
}

// PrepareReq delegates to the current descriptor's shaping (spec §4.4).
func (c *Channel) PrepareReq(req *ioreq.Request) bool {
	return c.current.PrepareReq(req)
}

// PushData accepts up to 4 peripheral-side bytes into the pending write
// word, flushing to a memory write once the word is full or the transfer's
// remaining size is exhausted (spec §4.3 RX divergence).
func (c *Channel) PushData(ctrl *Controller, data []byte) ioreq.Status {
	if c.current == nil {
		c.log.Warn("push_data with no active transfer")
		return ioreq.StatusInvalid
	}
	if c.pendingByteIndex+len(data) > 4 {
		c.log.Warn("push_data overflow", "pending", c.pendingByteIndex, "n", len(data))
		return ioreq.StatusInvalid
	}
	copy(c.pendingWord[c.pendingByteIndex:], data)
	c.pendingByteIndex += len(data)

	if c.pendingByteIndex >= 4 || int64(c.pendingByteIndex) >= c.current.RemainingSize {
		word := make([]byte, 4)
		copy(word, c.pendingWord[:])
		c.pendingWord = [4]byte{}
		c.pendingByteIndex = 0

		req := &ioreq.Request{IsWrite: true, Data: word}
		end := c.current.PrepareReq(req)
		ctrl.enqueueWrite(req)
		if end {
			c.handleTransferEnd(ctrl)
		}
	}
	return ioreq.StatusOK
}

// SlotCounts returns (free, pending, current-in-use) for invariant checks.
func (c *Channel) SlotCounts() (free, pending int, hasCurrent bool) {
	return c.free.Len(), c.pending.Len(), c.current != nil
}
