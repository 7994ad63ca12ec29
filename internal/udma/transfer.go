package udma

import (
	"time"

	"github.com/jiangjiandong/gvsoc/internal/ioreq"
)

// TransferSizeCode mirrors the CFG.SIZE field: the peripheral-side transfer
// width. The memory-side access is always 4 bytes regardless (spec §4.4).
type TransferSizeCode int

const (
	TransferSize8Bit TransferSizeCode = iota
	TransferSize16Bit
	TransferSize32Bit // reserved; WriteCfg stores the 2-bit CFG.SIZE field without rejecting it
)

// Transfer is a programmed DMA job, allocated from a channel's two-slot
// descriptor pool (spec §3 "Transfer descriptor").
type Transfer struct {
	StartAddr      uint64
	CurrentAddr    uint64
	TotalSize      int64
	RemainingSize  int64
	ReceivedSize   int64
	SizeCode       TransferSizeCode
	ContinuousMode bool
	Channel        *Channel
	ArmedAt        time.Time
}

func (t *Transfer) arm(saddr, size uint64, sizeCode TransferSizeCode, continuous bool, ch *Channel) {
	t.StartAddr = saddr
	t.CurrentAddr = saddr
	t.TotalSize = int64(size)
	t.RemainingSize = int64(size)
	t.ReceivedSize = 0
	t.SizeCode = sizeCode
	t.ContinuousMode = continuous
	t.Channel = ch
	t.ArmedAt = time.Now()
}

// PrepareReq shapes req into a 32-bit-aligned, 4-byte-wide memory access and
// advances the descriptor, regardless of the peripheral transfer width
// (spec §4.4). Returns true if this shaping exhausted the transfer.
func (t *Transfer) PrepareReq(req *ioreq.Request) bool {
	req.Addr = t.CurrentAddr &^ 0x3
	req.Size = 4
	req.Arg[0] = t.Channel
	t.CurrentAddr += 4
	t.RemainingSize -= 4
	return t.RemainingSize <= 0
}
