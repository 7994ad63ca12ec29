package gvsoc

import "github.com/jiangjiandong/gvsoc/internal/constants"

// Re-export register layout constants for public API consumers that don't
// want to import the internal package directly.
const (
	ChannelSaddrOffset  = constants.ChannelSaddrOffset
	ChannelSizeOffset   = constants.ChannelSizeOffset
	ChannelCfgOffset    = constants.ChannelCfgOffset
	ChannelTXOffset     = constants.ChannelTXOffset
	ChannelCustomOffset = constants.ChannelCustomOffset
	PeriphStride        = constants.PeriphStride
	ConfOffset          = constants.ConfOffset
	ConfCGOffset        = constants.ConfCGOffset
	ConfEvtinOffset     = constants.ConfEvtinOffset
	ConfSize            = constants.ConfSize
	MemWordSize         = constants.MemWordSize
)
