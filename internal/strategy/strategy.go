// Package strategy implements the five interchangeable cloning
// strategies from spec §4.7: for every source subvolume, decide which
// already-transferred subvolume to use as the send parent and which
// to pass as clone sources. This selection is the paper-worthy part
// of the whole tool (spec §1).
package strategy

import (
	"github.com/mwilck/btrfs-clone/internal/graph"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// Kind names one of the five strategies, taken verbatim from the
// --strategy flag (spec §6).
type Kind int

const (
	Parent Kind = iota
	Bruteforce
	Snapshot
	Chronological
	Generation
)

func (k Kind) String() string {
	switch k {
	case Parent:
		return "parent"
	case Bruteforce:
		return "bruteforce"
	case Snapshot:
		return "snapshot"
	case Chronological:
		return "chronological"
	case Generation:
		return "generation"
	default:
		return "unknown"
	}
}

// ParseKind parses the --strategy flag value, default "generation".
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "parent":
		return Parent, true
	case "bruteforce":
		return Bruteforce, true
	case "snapshot":
		return Snapshot, true
	case "chronological":
		return Chronological, true
	case "generation", "":
		return Generation, true
	default:
		return 0, false
	}
}

// Kinds lists every valid Kind; Orchestrator.Run rejects any other.
var Kinds = []Kind{Parent, Snapshot, Chronological, Generation, Bruteforce}

// Decision is what Select returns for one subvolume: the chosen
// parent (nil for a full send) and the clone-source set, plus a
// human-readable reason mainly useful for GENERATION's rule trace
// (spec §4.7.5) and the dry-run plan.
type Decision struct {
	Best         *subvolume.Subvolume
	CloneSources []*subvolume.Subvolume
	Reason       string
}

// Strategy is the shared prepare/select skeleton every one of the
// five cloning strategies implements (design notes, "Strategy
// plug-in").
type Strategy interface {
	// Order returns subvols sorted into this strategy's transfer order.
	Order(subvols []*subvolume.Subvolume, g *graph.Graph) []*subvolume.Subvolume

	// Select decides the parent and clone sources for s, given every
	// subvolume successfully transferred so far (in strategy-specific
	// bookkeeping order, see StagesViaFlatDir and each strategy's
	// comment for its own `done` ordering rule).
	Select(s *subvolume.Subvolume, done []*subvolume.Subvolume, g *graph.Graph) Decision

	// StagesViaFlatDir reports whether this strategy needs the Flat
	// Staging Area (spec §4.4) rather than receiving directly into the
	// final tree position.
	StagesViaFlatDir() bool
}

// New constructs the Strategy for kind.
func New(kind Kind) Strategy {
	switch kind {
	case Parent:
		return &parentStrategy{}
	case Bruteforce:
		return &bruteforceStrategy{}
	case Snapshot:
		return &snapshotStrategy{}
	case Chronological:
		return &chronologicalStrategy{}
	case Generation:
		return &generationStrategy{}
	default:
		panic("strategy: unknown kind")
	}
}
