package route

import (
	"container/heap"
	"context"

	"github.com/auramarua/nextpnr/model"
)

// searchNode is one priority-queue entry of the per-arc maze search.
type searchNode struct {
	wire   model.WireID
	via    model.PipID // pip taken to reach wire; -1 at the source
	g      float64     // cost so far
	f      float64     // g + heuristic
	parent *searchNode
	index  int // heap index
}

// searchHeap implements heap.Interface ordered by f.
type searchHeap []*searchNode

func (h searchHeap) Len() int           { return len(h) }
func (h searchHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h searchHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *searchHeap) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *searchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// manhattan is the admissible distance heuristic between grid positions.
func manhattan(a, b model.Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// search runs a best-path search from arc.SrcWire to arc.DstWire over the
// resource graph restricted to box, using the congestion-aware cost model in
// st. It returns the ordered pip chain on success. Failure (no path within
// the expansion limit, or context cancellation) returns ok == false; the
// caller records the arc as unrouted and moves on.
func (r *Router) search(ctx context.Context, st resourceState, arc model.Arc, box model.Box) ([]model.PipID, bool) {
	open := &searchHeap{}
	heap.Init(open)
	heap.Push(open, &searchNode{
		wire: arc.SrcWire,
		via:  -1,
		g:    0,
		f:    float64(manhattan(r.wireLoc(arc.SrcWire), arc.DstLoc)) * r.heuristicScale,
	})

	visited := make(map[model.WireID]bool)
	expanded := 0

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if current.wire == arc.DstWire {
			return reconstructPips(current), true
		}
		if visited[current.wire] {
			continue
		}
		visited[current.wire] = true

		expanded++
		if expanded > r.searchLimit {
			return nil, false
		}
		if expanded%searchCancelStride == 0 && ctx.Err() != nil {
			return nil, false
		}

		for _, pip := range r.host.PipsFrom(current.wire) {
			next, ok := r.wires[pip.Dst]
			if !ok || visited[next.ID] {
				continue
			}
			// Stay inside the worker's box; the sink wire itself is
			// always reachable so boundary sinks can terminate.
			if next.ID != arc.DstWire && !box.Contains(next.Loc) {
				continue
			}
			g := current.g + pip.Delay + r.wireCost(st, next)
			heap.Push(open, &searchNode{
				wire:   next.ID,
				via:    pip.ID,
				g:      g,
				f:      g + float64(manhattan(next.Loc, arc.DstLoc))*r.heuristicScale,
				parent: current,
			})
		}
	}
	return nil, false
}

// searchCancelStride bounds how often the search polls for cancellation.
const searchCancelStride = 256

func reconstructPips(node *searchNode) []model.PipID {
	var pips []model.PipID
	for n := node; n != nil && n.via >= 0; n = n.parent {
		pips = append(pips, n.via)
	}
	// Reverse into source-to-sink order.
	for i, j := 0, len(pips)-1; i < j; i, j = i+1, j-1 {
		pips[i], pips[j] = pips[j], pips[i]
	}
	return pips
}
