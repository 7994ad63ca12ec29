package router

import (
	"fmt"

	"github.com/jiangjiandong/gvsoc/internal/errs"
	"github.com/jiangjiandong/gvsoc/internal/ioreq"
)

// Mapping describes one entry of the router's address map, read at build
// time from the host's hierarchical config store (spec §6).
type Mapping struct {
	Base         uint64
	Size         uint64
	RemoveOffset uint64
	AddOffset    uint64
	Latency      int64
	// Target is nil for the error region (Size > 0, no target attached);
	// Size == 0 marks the default region regardless of Target. A nil-target
	// default is a legitimate no-op sink (Req returns OK without forwarding
	// anywhere), mirroring the original router's fall-through when a
	// matched entry has no attached port.
	Target ioreq.Target
}

// Config is the router's build-time configuration.
type Config struct {
	// Bandwidth is bytes/cycle; 0 disables bandwidth throttling.
	Bandwidth uint64
	Mappings  map[string]Mapping
}

// Router owns the compiled address-map tree. It is immutable after Build
// returns, aside from the per-leaf bandwidth cursor mutated during decode.
type Router struct {
	root          *entry
	errorRegion   *entry
	defaultRegion *entry
	bandwidth     uint64
}

// Build compiles cfg into a Router, inserting every mapping into a sorted
// list and then folding that list into a balanced decision tree (spec
// §4.1). Returns an error if two routable regions overlap.
func Build(cfg Config) (*Router, error) {
	r := &Router{bandwidth: cfg.Bandwidth}

	var leaves []*entry
	for name, m := range cfg.Mappings {
		e := &entry{
			name:         name,
			base:         m.Base,
			size:         m.Size,
			removeOffset: m.RemoveOffset,
			addOffset:    m.AddOffset,
			latency:      m.Latency,
			target:       m.Target,
			lowestBase:   m.Base,
		}

		switch {
		case m.Size == 0:
			r.defaultRegion = e
		case m.Target == nil:
			r.errorRegion = e
		default:
			leaves = insertSorted(leaves, e)
		}
	}

	for i := 1; i < len(leaves); i++ {
		prev := leaves[i-1]
		if prev.base+prev.size > leaves[i].base {
			return nil, errs.NewError("router.Build", errs.ErrCodeInvalidConfig, fmt.Sprintf(
				"region %q [0x%x, 0x%x) overlaps region %q at 0x%x",
				prev.name, prev.base, prev.base+prev.size, leaves[i].name, leaves[i].base))
		}
	}

	root, err := buildTree(leaves)
	if err != nil {
		return nil, err
	}
	r.root = root
	return r, nil
}

// buildTree folds a sorted leaf list into a tree by iterative pairwise
// merging: level L0 is the leaves; while more than one node remains at a
// level, walk pairs and emit an internal node per pair, carrying an odd
// tail unchanged to the next level (spec §4.1).
func buildTree(level []*entry) (*entry, error) {
	if len(level) == 0 {
		return nil, nil
	}
	for len(level) > 1 {
		next := make([]*entry, 0, (len(level)+1)/2)
		i := 0
		for i+1 < len(level) {
			a, b := level[i], level[i+1]
			next = append(next, &entry{
				splitBase:  b.lowestBase,
				lowestBase: a.lowestBase,
				left:       a,
				right:      b,
			})
			i += 2
		}
		if i < len(level) {
			next = append(next, level[i])
		}
		level = next
	}
	return level[0], nil
}
