// Package l2mem provides a sharded-lock in-memory ioreq.Target, standing in
// for the L2 scratchpad this core's router and uDMA controller drive reads
// and writes against.
package l2mem

import (
	"fmt"
	"sync"

	"github.com/jiangjiandong/gvsoc/internal/ioreq"
)

// ShardSize bounds the lock granularity. uDMA requests are always 4 bytes
// (spec §4.4) and router requests are at most a handful of bytes, so a
// single 64KB shard comfortably covers the common case of one lock per
// access with room to spare for a wider memory-mapped region.
const ShardSize = 64 * 1024

// Memory is a RAM-backed ioreq.Target. Shards let concurrent channels or
// router leaves touching disjoint regions proceed without contending on one
// mutex.
type Memory struct {
	data   []byte
	size   int64
	shards []sync.RWMutex
}

// New creates an L2 memory of the given size in bytes.
func New(size int64) *Memory {
	numShards := (size + ShardSize - 1) / ShardSize
	if numShards < 1 {
		numShards = 1
	}
	return &Memory{
		data:   make([]byte, size),
		size:   size,
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *Memory) shardRange(off, length int64) (start, end int) {
	start = int(off / ShardSize)
	end = int((off + length - 1) / ShardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	return start, end
}

// Req implements ioreq.Target: a write copies req.Data into the backing
// array, a read copies the backing array into req.Data. Any access that
// doesn't fully fit within the memory is rejected rather than silently
// truncated, since a partial uDMA word or router leaf access indicates a
// misconfigured address map upstream.
func (m *Memory) Req(req *ioreq.Request) ioreq.Status {
	off := int64(req.Addr)
	length := int64(req.Size)
	if off < 0 || length <= 0 || off+length > m.size {
		return ioreq.StatusInvalid
	}

	startShard, endShard := m.shardRange(off, length)

	if req.IsWrite {
		if int64(len(req.Data)) < length {
			return ioreq.StatusInvalid
		}
		for i := startShard; i <= endShard; i++ {
			m.shards[i].Lock()
		}
		copy(m.data[off:off+length], req.Data[:length])
		for i := startShard; i <= endShard; i++ {
			m.shards[i].Unlock()
		}
		return ioreq.StatusOK
	}

	if int64(len(req.Data)) < length {
		req.Data = make([]byte, length)
	}
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RLock()
	}
	copy(req.Data, m.data[off:off+length])
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RUnlock()
	}
	return ioreq.StatusOK
}

// Size reports the memory's total capacity in bytes.
func (m *Memory) Size() int64 { return m.size }

// Fill resets every byte in [offset, offset+length) to zero, for test setup
// and the discard-style bulk-clear path the original memory backend
// exposed.
func (m *Memory) Fill(offset, length int64) error {
	if offset < 0 || offset >= m.size {
		return fmt.Errorf("l2mem: offset %d out of range [0,%d)", offset, m.size)
	}
	end := offset + length
	if end > m.size {
		end = m.size
	}
	startShard, endShard := m.shardRange(offset, end-offset)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Lock()
	}
	for i := offset; i < end; i++ {
		m.data[i] = 0
	}
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Unlock()
	}
	return nil
}

var _ ioreq.Target = (*Memory)(nil)
