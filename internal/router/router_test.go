package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangjiandong/gvsoc/internal/errs"
	"github.com/jiangjiandong/gvsoc/internal/ioreq"
)

type fakeClock struct{ now int64 }

func (c fakeClock) Now() int64 { return c.now }

type recordingTarget struct {
	reqs []ioreq.Request
}

func (t *recordingTarget) Req(req *ioreq.Request) ioreq.Status {
	t.reqs = append(t.reqs, *req)
	return ioreq.StatusOK
}

func TestRouterDecodeAndForward(t *testing.T) {
	tgtA := &recordingTarget{}
	tgtB := &recordingTarget{}
	tgtD := &recordingTarget{}

	r, err := Build(Config{Mappings: map[string]Mapping{
		"A":       {Base: 0x0000, Size: 0x1000, RemoveOffset: 0x0000, Target: tgtA},
		"B":       {Base: 0x2000, Size: 0x1000, RemoveOffset: 0x2000, Target: tgtB},
		"default": {Size: 0, Target: tgtD},
	}})
	require.NoError(t, err)

	clock := fakeClock{}

	req := &ioreq.Request{Addr: 0x2040, Size: 4}
	status := r.Req(clock, req)
	assert.Equal(t, ioreq.StatusOK, status)
	require.Len(t, tgtB.reqs, 1)
	assert.Equal(t, uint64(0x0040), tgtB.reqs[0].Addr)

	req2 := &ioreq.Request{Addr: 0x1800, Size: 4}
	status2 := r.Req(clock, req2)
	assert.Equal(t, ioreq.StatusOK, status2)
	require.Len(t, tgtD.reqs, 1)
	assert.Equal(t, uint64(0x1800), tgtD.reqs[0].Addr)

	req3 := &ioreq.Request{Addr: 0x2FFE, Size: 4}
	status3 := r.Req(clock, req3)
	assert.Equal(t, ioreq.StatusInvalid, status3)
}

func TestRouterTreeBuildFiveRegions(t *testing.T) {
	mappings := map[string]Mapping{}
	targets := map[string]*recordingTarget{}
	for i, base := range []uint64{0x1000, 0x2000, 0x3000, 0x4000, 0x5000} {
		name := string(rune('A' + i))
		tgt := &recordingTarget{}
		targets[name] = tgt
		mappings[name] = Mapping{Base: base, Size: 0x1000, Target: tgt}
	}
	r, err := Build(Config{Mappings: mappings})
	require.NoError(t, err)

	assert.Equal(t, 3, r.DecodeDepth(0x4800))

	clock := fakeClock{}
	req := &ioreq.Request{Addr: 0x0800, Size: 4}
	status := r.Req(clock, req)
	assert.Equal(t, ioreq.StatusInvalid, status)
}

func TestRouterErrorRegionRejectsEvenWithDefault(t *testing.T) {
	tgtD := &recordingTarget{}
	r, err := Build(Config{Mappings: map[string]Mapping{
		"err":     {Base: 0x9000, Size: 0x100, Target: nil},
		"default": {Size: 0, Target: tgtD},
	}})
	require.NoError(t, err)

	status := r.Req(fakeClock{}, &ioreq.Request{Addr: 0x9010, Size: 4})
	assert.Equal(t, ioreq.StatusInvalid, status)
	assert.Empty(t, tgtD.reqs)
}

func TestRouterOverlapRejected(t *testing.T) {
	tgt := &recordingTarget{}
	_, err := Build(Config{Mappings: map[string]Mapping{
		"A": {Base: 0x0000, Size: 0x2000, Target: tgt},
		"B": {Base: 0x1000, Size: 0x1000, Target: tgt},
	}})
	require.Error(t, err)

	var buildErr *errs.Error
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, errs.ErrCodeInvalidConfig, buildErr.Code)
}

func TestRouterDefaultWithNilTargetIsNoOp(t *testing.T) {
	r, err := Build(Config{Mappings: map[string]Mapping{
		"default": {Size: 0, Target: nil},
	}})
	require.NoError(t, err)

	req := &ioreq.Request{Addr: 0x1234, Size: 4, Data: []byte{1, 2, 3, 4}}
	status := r.Req(fakeClock{}, req)
	assert.Equal(t, ioreq.StatusOK, status)
}

func TestRouterBandwidthThrottling(t *testing.T) {
	tgt := &recordingTarget{}
	r, err := Build(Config{
		Bandwidth: 4,
		Mappings: map[string]Mapping{
			"A": {Base: 0x0000, Size: 0x1000, Latency: 2, Target: tgt},
		},
	})
	require.NoError(t, err)

	clock := fakeClock{now: 100}
	req1 := &ioreq.Request{Addr: 0x10, Size: 4}
	r.Req(clock, req1)
	assert.Equal(t, int64(2), req1.Latency)
	assert.Equal(t, int64(1), req1.Duration)

	req2 := &ioreq.Request{Addr: 0x20, Size: 4}
	r.Req(clock, req2)
	assert.GreaterOrEqual(t, req2.Latency, int64(2))
}

func TestRouterAllAlignmentsWithinRegion(t *testing.T) {
	tgt := &recordingTarget{}
	r, err := Build(Config{Mappings: map[string]Mapping{
		"A": {Base: 0x4000, Size: 0x1000, AddOffset: 0x100, Target: tgt},
	}})
	require.NoError(t, err)

	for _, size := range []uint64{1, 2, 4, 8} {
		req := &ioreq.Request{Addr: 0x4010, Size: size}
		status := r.Req(fakeClock{}, req)
		assert.Equal(t, ioreq.StatusOK, status)
	}
	require.Len(t, tgt.reqs, 4)
	for _, got := range tgt.reqs {
		assert.Equal(t, uint64(0x4110), got.Addr)
	}
}
