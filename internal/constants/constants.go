// Package constants holds the register offsets, bit positions, and default
// sizes shared by the router and uDMA models. Keeping them in one package
// rather than scattered magic numbers mirrors the original hardware archi
// headers that centralize the register map.
package constants

// Per-channel generic register offsets, relative to the channel base.
const (
	ChannelSaddrOffset = 0x00
	ChannelSizeOffset  = 0x04
	ChannelCfgOffset   = 0x08
)

// CFG register bit positions (all 1 bit wide except Size, which is 2 bits).
const (
	CfgContBit   = 0
	CfgSizeBit   = 1 // occupies bits 1-2
	CfgEnBit     = 4
	CfgClearBit  = 5
	CfgShadowBit = 6
)

// Peripheral window layout: each peripheral owns [0, ChannelCustomOffset)
// for its two generic channels and [ChannelCustomOffset, PeriphStride) for
// custom registers.
const (
	ChannelTXOffset     = 0x10 // RX channel generic registers occupy [0, ChannelTXOffset)
	ChannelCustomOffset = 0x20 // TX channel generic registers occupy [ChannelTXOffset, ChannelCustomOffset)
	PeriphStride        = 0x80
)

// Top-level uDMA address map.
const (
	ConfOffset      = 0x0008_0000 // first address past the last peripheral window
	ConfCGOffset    = 0x00
	ConfEvtinOffset = 0x04
	ConfSize        = 0x08
)

// TransferSizeCode values for the CFG.SIZE field.
const (
	TransferSize8Bit  = 0
	TransferSize16Bit = 1
	TransferSize32Bit = 2 // reserved; a CFG write stores the 2-bit SIZE field unchecked
)

// ChannelDescriptorSlots is the fixed per-channel transfer descriptor pool
// size: exactly two slots (free/pending/current).
const ChannelDescriptorSlots = 2

// MemWordSize is the fixed width of every memory-side uDMA request: the bus
// only speaks 32-bit words regardless of the peripheral's transfer size.
const MemWordSize = 4

// Supported peripheral interface names and the uDMA protocol version each
// must declare in config. Anything else fails Build loudly.
const (
	InterfaceUART  = "uart"
	InterfaceSPIM  = "spim"
	InterfaceHyper = "hyper"
	InterfaceCPI   = "cpi"
)

// SupportedInterfaceVersions maps a supported interface name to the only
// protocol version this core understands for it.
var SupportedInterfaceVersions = map[string]int{
	InterfaceUART:  1,
	InterfaceSPIM:  2,
	InterfaceHyper: 1,
	InterfaceCPI:   1,
}

// DefaultL2ReadFIFOSize is used by demo/test configs that don't set
// properties.l2_read_fifo_size explicitly.
const DefaultL2ReadFIFOSize = 4
