// Package router implements the address-decoding interconnect: a set of
// mapped regions compiled into a binary decision tree (build.go) and the
// decode-and-forward request path (this file), grounded on
// original_source/models/interco/router_impl.cpp.
package router

import "github.com/jiangjiandong/gvsoc/internal/ioreq"

// Clock is the minimal host capability the router needs: the current
// simulation cycle, for bandwidth/latency accounting.
type Clock interface {
	Now() int64
}

// decode walks the tree from the root, returning the leaf the address maps
// to (or nil if the tree is empty) and the number of internal nodes
// visited, for the O(log N) decode-cost property (spec §8).
func (r *Router) decode(addr uint64) (*entry, int) {
	e := r.root
	visited := 0
	for e != nil && !e.isLeaf() {
		visited++
		if addr >= e.splitBase {
			e = e.right
		} else {
			e = e.left
		}
	}
	return e, visited
}

// DecodeDepth reports how many internal nodes a decode of addr visits.
func (r *Router) DecodeDepth(addr uint64) int {
	_, visited := r.decode(addr)
	return visited
}

// Req decodes req.Addr, applies address translation and bandwidth/latency
// accounting, and forwards to the resolved target (spec §4.2). An access
// that starts inside a mapped region but runs past its end fails Invalid;
// it never falls back to the default region.
func (r *Router) Req(clock Clock, req *ioreq.Request) ioreq.Status {
	leaf, _ := r.decode(req.Addr)
	if leaf != nil && !leaf.covers(req.Addr, req.Size) {
		if req.Addr >= leaf.base && req.Addr-leaf.base < leaf.size {
			return ioreq.StatusInvalid
		}
		leaf = nil
	}

	if leaf == nil {
		if r.errorRegion != nil && r.errorRegion.covers(req.Addr, req.Size) {
			return ioreq.StatusInvalid
		}
		if r.defaultRegion == nil {
			return ioreq.StatusInvalid
		}
		leaf = r.defaultRegion
	}

	// A leaf reached only via default-route fallback may carry no target at
	// all — a silent no-op sink, matching the original router::req's
	// fall-through to vp::IO_REQ_OK when the matched entry has no attached
	// port. A leaf reached through the decision tree always has a target
	// (Build never inserts a targetless entry into the tree), so this only
	// ever fires for a targetless default region.
	if leaf.target == nil {
		return ioreq.StatusOK
	}

	// Address translation: by construction at most one of remove/add is
	// non-zero for a given leaf.
	if leaf.removeOffset != 0 {
		req.Addr -= leaf.removeOffset
	} else if leaf.addOffset != 0 {
		req.Addr += leaf.addOffset
	}

	now := clock.Now()
	if r.bandwidth != 0 {
		duration := int64(req.Size) / int64(r.bandwidth)
		routerTime := leaf.nextPacketTime
		if now > routerTime {
			routerTime = now
		}
		packetTime := routerTime + leaf.latency
		if alt := now + req.Latency + leaf.latency; alt > packetTime {
			packetTime = alt
		}
		req.Latency = packetTime - now
		req.Duration = duration
		leaf.nextPacketTime = routerTime + int64(req.Size)
	} else {
		req.Latency += leaf.latency
	}

	return leaf.target.Req(req)
}
