package route

import (
	"runtime"

	"github.com/auramarua/nextpnr/internal/logging"
	"github.com/auramarua/nextpnr/internal/observability"
)

// PartitionOptions tunes the recursive spatial partitioner.
type PartitionOptions struct {
	// Policy selects the split-point rule. Default: SplitBalanced.
	Policy SplitPolicy
	// Depth bounds the recursion; depth 2 yields up to 16 leaves.
	Depth int
	// MinArcsPerLeaf stops splitting regions with too little work.
	MinArcsPerLeaf int
	// MinBoxExtent stops splitting when a child box would be narrower
	// than this in either dimension.
	MinBoxExtent int
	// ReservedPatterns are wire-name substrings that force an arc into
	// the serial special pass. Nil selects DefaultReservedPatterns.
	ReservedPatterns []string
}

// Options carries the tuning parameters of a routing run. The two weights
// mirror the entry-point contract; everything else has serviceable defaults.
type Options struct {
	// Pressure amplifies current-iteration contention cost.
	Pressure float64
	// History amplifies accumulated cross-iteration congestion cost.
	History float64

	// Workers sizes the parallel worker pool. Default: GOMAXPROCS.
	Workers int
	// SearchLimit caps node expansions per arc search.
	SearchLimit int
	// RipUpIters caps negotiated-congestion iterations per worker.
	RipUpIters int
	// HeuristicScale weights the distance heuristic of the maze search.
	HeuristicScale float64

	Partition PartitionOptions

	Logger  logging.Logger
	Metrics *observability.RouterCollector
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 100000
	}
	if o.RipUpIters <= 0 {
		o.RipUpIters = 20
	}
	if o.HeuristicScale <= 0 {
		o.HeuristicScale = 0.1
	}
	if o.Partition.Policy == "" {
		o.Partition.Policy = SplitBalanced
	}
	if o.Partition.Depth <= 0 {
		o.Partition.Depth = 2
	}
	if o.Partition.MinBoxExtent <= 0 {
		o.Partition.MinBoxExtent = 1
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	return o
}
