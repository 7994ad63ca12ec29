package router

import "github.com/jiangjiandong/gvsoc/internal/ioreq"

// entry is both a leaf (routable region, error region, or default region)
// and an internal decision-tree node, exactly as the original MapEntry
// class overloads one struct for both roles (original_source's
// models/interco/router_impl.cpp). A leaf has left/right nil and, for a
// routable region, target set; the error region and a targetless default
// are leaves with a nil target. An internal node has left/right set and
// target nil.
type entry struct {
	name string

	base         uint64
	size         uint64
	removeOffset uint64
	addOffset    uint64
	latency      int64
	target       ioreq.Target

	// nextPacketTime is the bandwidth-throttling cursor: the earliest
	// cycle at which this leaf can start shaping the next packet.
	nextPacketTime int64

	// lowestBase is the minimum leaf base reachable under this node; for a
	// leaf it's simply base.
	lowestBase uint64
	splitBase  uint64
	left       *entry
	right      *entry
}

func (e *entry) isLeaf() bool {
	return e.left == nil && e.right == nil
}

// covers reports whether the half-open byte range [addr, addr+size) lies
// entirely within the leaf's mapped range.
func (e *entry) covers(addr, size uint64) bool {
	if size == 0 {
		return false
	}
	return addr >= e.base && addr+size-1 <= e.base+e.size-1
}

// insertSorted inserts e into the ascending-by-base list list, returning the
// updated list. Mirrors MapEntry::insert's sorted singly-linked insertion.
func insertSorted(list []*entry, e *entry) []*entry {
	i := 0
	for i < len(list) && list[i].base < e.base {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = e
	return list
}
