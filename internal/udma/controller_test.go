package udma

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangjiandong/gvsoc/internal/errs"
	"github.com/jiangjiandong/gvsoc/internal/ioreq"
	"github.com/jiangjiandong/gvsoc/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(&logging.Config{Level: logging.LevelError})
}

func bufferedLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.NewLogger(&logging.Config{Level: logging.LevelWarn, Output: buf})
}

type fakeL2 struct {
	reqs []ioreq.Request
}

func (l *fakeL2) Req(req *ioreq.Request) ioreq.Status {
	l.reqs = append(l.reqs, *req)
	return ioreq.StatusOK
}

func buildTestController(t *testing.T, fifo int, host *testHost, l2 ioreq.Target) *Controller {
	t.Helper()
	ctrl, err := Build(host, testLogger(), Config{
		NbPeriphs:      1,
		L2ReadFIFOSize: fifo,
		Interfaces: map[string]InterfaceConfig{
			"uart": {NbChannels: 2, IDs: []int{0}, Version: 1},
		},
	}, l2)
	require.NoError(t, err)
	return ctrl
}

func writeReg(ctrl *Controller, periph int, offset uint64, v uint32) ioreq.Status {
	data := make([]byte, 4)
	data[0] = byte(v)
	data[1] = byte(v >> 8)
	data[2] = byte(v >> 16)
	data[3] = byte(v >> 24)
	return ctrl.Req(&ioreq.Request{Addr: uint64(periph)*0x80 + offset, Size: 4, IsWrite: true, Data: data})
}

func readReg(ctrl *Controller, periph int, offset uint64) (uint32, ioreq.Status) {
	data := make([]byte, 4)
	status := ctrl.Req(&ioreq.Request{Addr: uint64(periph)*0x80 + offset, Size: 4, IsWrite: false, Data: data})
	v := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	return v, status
}

func enableClockGate(ctrl *Controller, mask uint32) {
	data := make([]byte, 4)
	data[0] = byte(mask)
	data[1] = byte(mask >> 8)
	data[2] = byte(mask >> 16)
	data[3] = byte(mask >> 24)
	ctrl.Req(&ioreq.Request{Addr: 0x0008_0000, Size: 4, IsWrite: true, Data: data})
}

// TX channel offset is channel 1 (RX=ch0,TX=ch1 within periph 0's window)
const txSaddrOffset = 0x10 + 0x00
const txSizeOffset = 0x10 + 0x04
const txCfgOffset = 0x10 + 0x08

func TestUDMATXTransferScenario(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	ctrl := buildTestController(t, 4, host, l2)
	enableClockGate(ctrl, 1)

	st := writeReg(ctrl, 0, txSaddrOffset, 0x1000)
	require.Equal(t, ioreq.StatusOK, st)
	writeReg(ctrl, 0, txSizeOffset, 16)
	writeReg(ctrl, 0, txCfgOffset, 1<<4) // EN

	host.Step(1) // channel event: current armed, ready queued, ctrl event armed
	host.Step(1) // ctrl event: issue all 4 reads
	host.Step(1) // ctrl event: deliver completions

	require.Len(t, l2.reqs, 4)
	wantAddrs := []uint64{0x1000, 0x1004, 0x1008, 0x100C}
	for i, req := range l2.reqs {
		assert.Equal(t, wantAddrs[i], req.Addr)
		assert.Equal(t, uint64(4), req.Size)
	}

	assert.Contains(t, host.triggered, 1) // TX channel id is 1 (RX=0, TX=1)
	ch := ctrl.Periph(0).TX
	free, pending, hasCurrent := ch.SlotCounts()
	assert.Equal(t, 2, free)
	assert.Equal(t, 0, pending)
	assert.False(t, hasCurrent)
}

func TestUDMARXBytePackScenario(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	ctrl := buildTestController(t, 4, host, l2)
	enableClockGate(ctrl, 1)

	writeReg(ctrl, 0, constantsSaddrOffset(), 0x2000)
	writeReg(ctrl, 0, constantsSizeOffset(), 6)
	writeReg(ctrl, 0, constantsCfgOffset(), 1<<4)

	host.Step(1) // channel event fires, RX becomes current

	ch := ctrl.Periph(0).RX
	require.NotNil(t, ch.current)

	assert.Equal(t, ioreq.StatusOK, ch.PushData(ctrl, []byte{0xAA, 0xBB}))
	assert.Equal(t, ioreq.StatusOK, ch.PushData(ctrl, []byte{0xCC, 0xDD}))

	host.Step(1) // P1 drains the first write

	assert.Equal(t, ioreq.StatusOK, ch.PushData(ctrl, []byte{0xEE, 0xFF}))

	host.Step(1) // P1 drains the second write (transfer end was raised by the last PushData)

	require.Len(t, l2.reqs, 2)
	assert.Equal(t, uint64(0x2000), l2.reqs[0].Addr)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, l2.reqs[0].Data)
	assert.Equal(t, uint64(0x2004), l2.reqs[1].Addr)
	assert.Equal(t, byte(0xEE), l2.reqs[1].Data[0])
	assert.Equal(t, byte(0xFF), l2.reqs[1].Data[1])

	assert.Contains(t, host.triggered, 0)
}

func TestUDMATwoPendingShadow(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	var logBuf bytes.Buffer
	ctrl, err := Build(host, bufferedLogger(&logBuf), Config{
		NbPeriphs:      1,
		L2ReadFIFOSize: 4,
		Interfaces: map[string]InterfaceConfig{
			"uart": {IDs: []int{0}, Version: 1},
		},
	}, l2)
	require.NoError(t, err)
	enableClockGate(ctrl, 1)

	writeReg(ctrl, 0, txSaddrOffset, 0x1000)
	writeReg(ctrl, 0, txSizeOffset, 4)
	writeReg(ctrl, 0, txCfgOffset, 1<<4) // first enable: pops a free slot into pending

	writeReg(ctrl, 0, txSaddrOffset, 0x2000)
	writeReg(ctrl, 0, txSizeOffset, 4)
	writeReg(ctrl, 0, txCfgOffset, 1<<4) // second enable: pops the last free slot

	cfg, _ := readReg(ctrl, 0, txCfgOffset)
	assert.NotZero(t, cfg&(1<<6), "SHADOW should be set")
	assert.NotZero(t, cfg&(1<<4), "EN should be set")

	// third enable: no free slots, dropped with a warning
	writeReg(ctrl, 0, txSaddrOffset, 0x3000)
	writeReg(ctrl, 0, txSizeOffset, 4)
	writeReg(ctrl, 0, txCfgOffset, 1<<4)

	assert.Contains(t, logBuf.String(), "enqueue_transfer dropped")
}

func TestUDMAClockGateOff(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	ctrl := buildTestController(t, 4, host, l2)
	// clock gate left at 0 (off) for peripheral 0.

	status := writeReg(ctrl, 0, txSaddrOffset, 0xDEAD)
	assert.Equal(t, ioreq.StatusOK, status)

	v, status2 := readReg(ctrl, 0, txSaddrOffset)
	assert.Equal(t, ioreq.StatusOK, status2)
	assert.Zero(t, v, "gated-off write must not mutate state")

	enableClockGate(ctrl, 1)
	writeReg(ctrl, 0, txSaddrOffset, 0xBEEF)
	v2, _ := readReg(ctrl, 0, txSaddrOffset)
	assert.Equal(t, uint32(0xBEEF), v2)
}

func TestUDMAClockGateStrictMode(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	ctrl, err := Build(host, testLogger(), Config{
		NbPeriphs:      1,
		L2ReadFIFOSize: 4,
		Interfaces: map[string]InterfaceConfig{
			"uart": {IDs: []int{0}, Version: 1},
		},
		StrictClockGate: true,
	}, l2)
	require.NoError(t, err)

	status := writeReg(ctrl, 0, txSaddrOffset, 0xDEAD)
	assert.Equal(t, ioreq.StatusInvalid, status)
}

func TestUDMAReadPoolConservation(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	ctrl := buildTestController(t, 4, host, l2)
	enableClockGate(ctrl, 1)

	writeReg(ctrl, 0, txSaddrOffset, 0x1000)
	writeReg(ctrl, 0, txSizeOffset, 16)
	writeReg(ctrl, 0, txCfgOffset, 1<<4)

	host.Step(1)
	free, waiting, capacity := ctrl.ReadPoolStats()
	assert.Equal(t, capacity, free+waiting)

	host.Step(1)
	free, waiting, capacity = ctrl.ReadPoolStats()
	assert.Equal(t, capacity, free+waiting)
}

func TestUDMAUnsupportedInterfaceFailsBuild(t *testing.T) {
	host := newTestHost()
	l2 := &fakeL2{}
	_, err := Build(host, testLogger(), Config{
		NbPeriphs: 1,
		Interfaces: map[string]InterfaceConfig{
			"uart": {IDs: []int{0}, Version: 99},
		},
	}, l2)
	require.Error(t, err)
	var buildErr *errs.Error
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, errs.ErrCodeUnsupportedIface, buildErr.Code)

	_, err2 := Build(host, testLogger(), Config{
		NbPeriphs: 1,
		Interfaces: map[string]InterfaceConfig{
			"not-a-real-interface": {IDs: []int{0}, Version: 1},
		},
	}, l2)
	require.Error(t, err2)
	var buildErr2 *errs.Error
	require.True(t, errors.As(err2, &buildErr2))
	assert.Equal(t, errs.ErrCodeUnsupportedIface, buildErr2.Code)
}

func constantsSaddrOffset() uint64 { return 0x00 }
func constantsSizeOffset() uint64  { return 0x04 }
func constantsCfgOffset() uint64   { return 0x08 }
