package route

import (
	"github.com/auramarua/nextpnr/model"
)

// ArcStatus tracks an arc through the negotiated-congestion state machine:
// Unrouted -> PathFound -> Committed on success, with PathFound/Committed ->
// RippedUp -> Unrouted on congestion, and Failed as the terminal state when
// the search or rip-up budget is exhausted.
type ArcStatus int

const (
	ArcUnrouted ArcStatus = iota
	ArcPathFound
	ArcRippedUp
	ArcCommitted
	ArcFailed
)

func (s ArcStatus) String() string {
	switch s {
	case ArcUnrouted:
		return "unrouted"
	case ArcPathFound:
		return "path_found"
	case ArcRippedUp:
		return "ripped_up"
	case ArcCommitted:
		return "committed"
	case ArcFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkerStatus tracks a partition worker: Pending -> Routing -> Done. A
// worker reaches Done whether or not every arc succeeded; failures are
// aggregated, never escalated.
type WorkerStatus int

const (
	WorkerPending WorkerStatus = iota
	WorkerRouting
	WorkerDone
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerPending:
		return "pending"
	case WorkerRouting:
		return "routing"
	case WorkerDone:
		return "done"
	default:
		return "unknown"
	}
}

// ArcRoute is the outcome for one arc: its terminal status and, when
// committed, the ordered pip chain from source wire to sink wire.
type ArcRoute struct {
	Arc    model.Arc
	Status ArcStatus
	Pips   []model.PipID
}

// PartitionResult summarizes one worker's pass over its partition.
type PartitionResult struct {
	Name      string
	Box       model.Box
	Status    WorkerStatus
	Committed int
	Failed    int
	Iters     int
}

// Result is the structured outcome of a full routing run. The boolean
// contract of the entry point is preserved through OK; callers that want the
// breakdown read the fields directly.
type Result struct {
	ArcsExtracted int
	SpecialArcs   int
	Committed     int
	Failed        int

	Partitions []PartitionResult
	Special    PartitionResult

	Routes []ArcRoute
}

// OK reports whether every arc reached Committed.
func (r *Result) OK() bool {
	return r != nil && r.Failed == 0
}
