package route

import (
	"context"
	"time"

	"github.com/auramarua/nextpnr/internal/logging"
	"github.com/auramarua/nextpnr/internal/observability"
	"github.com/auramarua/nextpnr/model"
)

// wireState holds the mutable congestion counters for one wire. Occupancy is
// counted per distinct net: arcs of the same net sharing a wire is legal and
// must not look like contention.
type wireState struct {
	occupants map[model.NetID]int
	history   float64
}

func (s *wireState) usage() int { return len(s.occupants) }

func (s *wireState) claim(n model.NetID) {
	if s.occupants == nil {
		s.occupants = make(map[model.NetID]int)
	}
	s.occupants[n]++
}

func (s *wireState) release(n model.NetID) {
	s.occupants[n]--
	if s.occupants[n] <= 0 {
		delete(s.occupants, n)
	}
}

// resourceState maps wires to their congestion counters. Each parallel
// worker owns one instance; the partitioner's tiling invariant keeps the
// touched key sets disjoint, so no locking is needed until states are merged
// for the serial special pass.
type resourceState map[model.WireID]*wireState

func (st resourceState) get(w model.WireID) *wireState {
	s, ok := st[w]
	if !ok {
		s = &wireState{}
		st[w] = s
	}
	return s
}

// merge folds o into st. Called once per worker after the join barrier.
func (st resourceState) merge(o resourceState) {
	for w, in := range o {
		s := st.get(w)
		s.history += in.history
		for net, n := range in.occupants {
			if s.occupants == nil {
				s.occupants = make(map[model.NetID]int)
			}
			s.occupants[net] += n
		}
	}
}

// Router holds the shared, read-mostly routing configuration: the resource
// graph snapshot, the cost-model weights, and the search and rip-up budgets.
// Per-worker mutable state lives on each Worker.
type Router struct {
	host    Host
	wires   map[model.WireID]model.Wire
	pipByID map[model.PipID]model.Pip

	pressure       float64
	history        float64
	heuristicScale float64
	searchLimit    int
	ripUpIters     int

	log     logging.Logger
	metrics *observability.RouterCollector
}

// NewRouter builds a router over the host's wire table with the given
// pressure and history weights.
func NewRouter(host Host, opts Options) *Router {
	opts = opts.withDefaults()
	wires := host.Wires()
	table := make(map[model.WireID]model.Wire, len(wires))
	for _, w := range wires {
		table[w.ID] = w
	}
	pips := host.Pips()
	pipTable := make(map[model.PipID]model.Pip, len(pips))
	for _, p := range pips {
		pipTable[p.ID] = p
	}
	return &Router{
		host:           host,
		wires:          table,
		pipByID:        pipTable,
		pressure:       opts.Pressure,
		history:        opts.History,
		heuristicScale: opts.HeuristicScale,
		searchLimit:    opts.SearchLimit,
		ripUpIters:     opts.RipUpIters,
		log:            opts.Logger,
		metrics:        opts.Metrics,
	}
}

func (r *Router) wireLoc(w model.WireID) model.Coord {
	return r.wires[w].Loc
}

// wireCost is the congestion-aware cost of routing through a wire:
//
//	base_delay + pressure*current_usage + history*historical_congestion
//
// It is strictly monotone in both weights for any wire with nonzero usage or
// history.
func (r *Router) wireCost(st resourceState, w model.Wire) float64 {
	cost := w.Delay
	if s, ok := st[w.ID]; ok {
		cost += r.pressure*float64(s.usage()) + r.history*s.history
	}
	return cost
}

// Worker owns one routing task: a bounding box, an arc worklist, and
// exclusive access to the congestion counters of resources inside its box.
type Worker struct {
	Name   string
	Box    model.Box
	Arcs   []model.Arc
	Status WorkerStatus

	state  resourceState
	routes []ArcRoute
	iters  int
}

// NewWorker builds a pending worker for one partition. A nil seed starts
// from empty congestion state; the serial special pass seeds the worker with
// the merged state of every partition worker.
func NewWorker(p Partition, seed resourceState) *Worker {
	state := seed
	if state == nil {
		state = make(resourceState)
	}
	return &Worker{
		Name:   p.Name,
		Box:    p.Box,
		Arcs:   p.Arcs,
		Status: WorkerPending,
		state:  state,
	}
}

// State exposes the worker's congestion counters for merging after the
// parallel phase has joined.
func (w *Worker) State() resourceState { return w.state }

// Routes returns the per-arc outcomes. Valid once the worker is Done.
func (w *Worker) Routes() []ArcRoute { return w.routes }

// Result summarizes the worker's pass.
func (w *Worker) Result() PartitionResult {
	res := PartitionResult{Name: w.Name, Box: w.Box, Status: w.Status, Iters: w.iters}
	for _, rt := range w.routes {
		switch rt.Status {
		case ArcCommitted:
			res.Committed++
		case ArcFailed:
			res.Failed++
		}
	}
	return res
}

// Route runs the negotiated-congestion discipline over the worker's arcs:
// route everything, identify over-subscribed wires, rip the offending arcs
// up with increased historical cost, and iterate until clean or the rip-up
// budget is exhausted. A single arc failing to route never aborts the
// worker.
func (r *Router) Route(ctx context.Context, w *Worker) PartitionResult {
	start := time.Now()
	w.Status = WorkerRouting
	w.routes = make([]ArcRoute, len(w.Arcs))
	for i, arc := range w.Arcs {
		w.routes[i] = ArcRoute{Arc: arc, Status: ArcUnrouted}
	}

	iters := 0
	for iter := 1; iter <= r.ripUpIters; iter++ {
		iters = iter
		r.routePass(ctx, w)

		over := r.overSubscribed(w.state)
		r.metrics.SetOverSubscribedWires(len(over))
		if len(over) == 0 {
			break
		}
		if iter == r.ripUpIters {
			// Budget exhausted: the arcs still contending are routing
			// failures, reported upward rather than fatal.
			r.failConflicted(w)
			break
		}
		r.ripUp(w, over)
	}

	for i := range w.routes {
		switch w.routes[i].Status {
		case ArcPathFound:
			w.routes[i].Status = ArcCommitted
		case ArcUnrouted, ArcRippedUp:
			w.routes[i].Status = ArcFailed
		}
	}

	w.Status = WorkerDone
	w.iters = iters
	res := w.Result()
	r.metrics.ObserveRoutePass(time.Since(start))
	r.metrics.AddArcsCommitted(res.Committed)
	r.metrics.AddArcsFailed(res.Failed)
	r.log.Debug(ctx, "partition routed",
		logging.String("partition", w.Name),
		logging.Int("committed", res.Committed),
		logging.Int("failed", res.Failed),
		logging.Int("iterations", iters),
	)
	return res
}

// routePass attempts a search for every arc not currently holding a path.
func (r *Router) routePass(ctx context.Context, w *Worker) {
	for i := range w.routes {
		rt := &w.routes[i]
		if rt.Status != ArcUnrouted && rt.Status != ArcRippedUp {
			continue
		}
		rt.Status = ArcUnrouted
		pips, ok := r.search(ctx, w.state, rt.Arc, w.Box)
		if !ok {
			continue
		}
		rt.Pips = pips
		rt.Status = ArcPathFound
		r.claimPath(w.state, rt)
	}
}

// claimPath marks every wire along the arc's path used by the arc's net.
// The source wire belongs to the net's driver and is claimed too, so later
// passes see the net's full footprint.
func (r *Router) claimPath(st resourceState, rt *ArcRoute) {
	st.get(rt.Arc.SrcWire).claim(rt.Arc.Net)
	for _, pip := range rt.Pips {
		st.get(r.pipDst(pip)).claim(rt.Arc.Net)
	}
}

func (r *Router) releasePath(st resourceState, rt *ArcRoute) {
	st.get(rt.Arc.SrcWire).release(rt.Arc.Net)
	for _, pip := range rt.Pips {
		st.get(r.pipDst(pip)).release(rt.Arc.Net)
	}
}

// overSubscribed returns the wires whose usage exceeds capacity.
func (r *Router) overSubscribed(st resourceState) map[model.WireID]struct{} {
	over := make(map[model.WireID]struct{})
	for id, s := range st {
		if s.usage() > r.wires[id].EffectiveCapacity() {
			over[id] = struct{}{}
		}
	}
	return over
}

// ripUp releases every arc whose path crosses an over-subscribed wire and
// raises the historical congestion on the offenders so the next pass routes
// around them.
func (r *Router) ripUp(w *Worker, over map[model.WireID]struct{}) {
	for id := range over {
		s := w.state.get(id)
		s.history += float64(s.usage() - r.wires[id].EffectiveCapacity())
	}
	for i := range w.routes {
		rt := &w.routes[i]
		if rt.Status != ArcPathFound || !r.pathTouches(rt, over) {
			continue
		}
		r.releasePath(w.state, rt)
		rt.Status = ArcRippedUp
		rt.Pips = nil
		r.metrics.IncRipUps()
	}
}

// failConflicted resolves the remaining contention by failing arcs one at a
// time. Each release lowers usage on the wires it touched, so an arc later
// in the worklist whose conflict was already resolved keeps its path.
func (r *Router) failConflicted(w *Worker) {
	for i := range w.routes {
		rt := &w.routes[i]
		if rt.Status != ArcPathFound || !r.pathOverSubscribed(w.state, rt) {
			continue
		}
		r.releasePath(w.state, rt)
		rt.Status = ArcFailed
		rt.Pips = nil
	}
}

// pathOverSubscribed reports whether any wire on the arc's path currently
// exceeds its capacity.
func (r *Router) pathOverSubscribed(st resourceState, rt *ArcRoute) bool {
	if s, ok := st[rt.Arc.SrcWire]; ok && s.usage() > r.wires[rt.Arc.SrcWire].EffectiveCapacity() {
		return true
	}
	for _, pip := range rt.Pips {
		dst := r.pipDst(pip)
		if s, ok := st[dst]; ok && s.usage() > r.wires[dst].EffectiveCapacity() {
			return true
		}
	}
	return false
}

func (r *Router) pathTouches(rt *ArcRoute, over map[model.WireID]struct{}) bool {
	if _, ok := over[rt.Arc.SrcWire]; ok {
		return true
	}
	for _, pip := range rt.Pips {
		if _, ok := over[r.pipDst(pip)]; ok {
			return true
		}
	}
	return false
}

func (r *Router) pipDst(id model.PipID) model.WireID {
	if p, ok := r.pipByID[id]; ok {
		return p.Dst
	}
	return -1
}
