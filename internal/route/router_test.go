package route

import (
	"context"
	"testing"

	"github.com/auramarua/nextpnr/device"
	"github.com/auramarua/nextpnr/model"
)

func mustWire(t *testing.T, g *device.Grid, name string, x, y int, delay float64) model.WireID {
	t.Helper()
	id, err := g.AddWire(name, model.Coord{X: x, Y: y}, delay)
	if err != nil {
		t.Fatalf("AddWire(%s): %v", name, err)
	}
	return id
}

func mustPip(t *testing.T, g *device.Grid, name string, src, dst model.WireID, x, y int, delay float64) model.PipID {
	t.Helper()
	id, err := g.AddPip(name, src, dst, model.Coord{X: x, Y: y}, delay)
	if err != nil {
		t.Fatalf("AddPip(%s): %v", name, err)
	}
	return id
}

func TestWireCostMonotoneInWeights(t *testing.T) {
	g := device.NewGrid(2, 1)
	w := mustWire(t, g, "A", 0, 0, 2.0)

	st := make(resourceState)
	s := st.get(w)
	s.claim(1)
	s.claim(2)
	s.history = 3

	low := NewRouter(g, Options{Pressure: 0.5, History: 0.5})
	high := NewRouter(g, Options{Pressure: 2.0, History: 0.5})
	wire := low.wires[w]

	base := NewRouter(g, Options{Pressure: 0.5, History: 0.5}).wireCost(make(resourceState), wire)
	if base != 2.0 {
		t.Fatalf("expected uncongested cost to equal delay 2.0, got %v", base)
	}
	if low.wireCost(st, wire) >= high.wireCost(st, wire) {
		t.Fatalf("expected cost to grow with pressure: %v vs %v",
			low.wireCost(st, wire), high.wireCost(st, wire))
	}
	hist := NewRouter(g, Options{Pressure: 0.5, History: 2.0})
	if low.wireCost(st, wire) >= hist.wireCost(st, wire) {
		t.Fatalf("expected cost to grow with history weight: %v vs %v",
			low.wireCost(st, wire), hist.wireCost(st, wire))
	}
}

func TestRouteSimpleChain(t *testing.T) {
	g := device.NewGrid(3, 1)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	b := mustWire(t, g, "B", 1, 0, 1.0)
	c := mustWire(t, g, "C", 2, 0, 1.0)
	ab := mustPip(t, g, "A->B", a, b, 0, 0, 1.0)
	bc := mustPip(t, g, "B->C", b, c, 1, 0, 1.0)

	r := NewRouter(g, Options{Pressure: 0.5, History: 0.5})
	arc := model.Arc{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: c, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0, NetName: "n0"}
	w := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 1}}, Name: "_NE", Arcs: []model.Arc{arc}}, nil)

	res := r.Route(context.Background(), w)
	if res.Committed != 1 || res.Failed != 0 {
		t.Fatalf("expected 1 committed, 0 failed; got %d/%d", res.Committed, res.Failed)
	}
	if w.Status != WorkerDone {
		t.Fatalf("expected worker done, got %v", w.Status)
	}
	routes := w.Routes()
	if len(routes) != 1 || routes[0].Status != ArcCommitted {
		t.Fatalf("expected one committed route, got %+v", routes)
	}
	want := []model.PipID{ab, bc}
	if len(routes[0].Pips) != 2 || routes[0].Pips[0] != want[0] || routes[0].Pips[1] != want[1] {
		t.Fatalf("expected pip chain %v, got %v", want, routes[0].Pips)
	}
}

// Two nets contend for a cheap shared wire; only the first net has an
// alternative. The first pass collides, the rip-up raises the shared wire's
// history, and the next pass diverts the flexible net onto the detour.
func TestRouteNegotiatesCongestion(t *testing.T) {
	g := device.NewGrid(3, 2)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	b := mustWire(t, g, "B", 0, 1, 1.0)
	m := mustWire(t, g, "M", 1, 0, 1.0)
	n := mustWire(t, g, "N", 1, 1, 3.0)
	x := mustWire(t, g, "X", 2, 0, 1.0)
	y := mustWire(t, g, "Y", 2, 1, 1.0)

	mustPip(t, g, "A->M", a, m, 0, 0, 1.0)
	an := mustPip(t, g, "A->N", a, n, 0, 0, 1.0)
	mustPip(t, g, "B->M", b, m, 0, 1, 1.0)
	mustPip(t, g, "M->X", m, x, 1, 0, 1.0)
	mustPip(t, g, "N->X", n, x, 1, 1, 1.0)
	mustPip(t, g, "M->Y", m, y, 1, 0, 1.0)

	arcs := []model.Arc{
		{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: x, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0, NetName: "n0"},
		{SrcWire: b, SrcLoc: model.Coord{X: 0, Y: 1}, DstWire: y, DstLoc: model.Coord{X: 2, Y: 1}, Net: 1, NetName: "n1"},
	}
	r := NewRouter(g, Options{Pressure: 0.5, History: 5.0, RipUpIters: 10})
	w := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 2}}, Arcs: arcs}, nil)

	res := r.Route(context.Background(), w)
	if res.Committed != 2 || res.Failed != 0 {
		t.Fatalf("expected both arcs committed, got %d committed / %d failed", res.Committed, res.Failed)
	}
	if res.Iters < 2 {
		t.Fatalf("expected at least one rip-up iteration, got %d", res.Iters)
	}
	routes := w.Routes()
	if len(routes[0].Pips) == 0 || routes[0].Pips[0] != an {
		t.Fatalf("expected net 0 diverted through N, got pips %v", routes[0].Pips)
	}
}

// Both nets need the same capacity-1 wire and no detour exists. When the
// rip-up budget runs out, exactly one arc keeps the wire.
func TestRouteFailsLoserWhenBudgetExhausted(t *testing.T) {
	g := device.NewGrid(3, 2)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	b := mustWire(t, g, "B", 0, 1, 1.0)
	m := mustWire(t, g, "M", 1, 0, 1.0)
	x := mustWire(t, g, "X", 2, 0, 1.0)
	y := mustWire(t, g, "Y", 2, 1, 1.0)

	mustPip(t, g, "A->M", a, m, 0, 0, 1.0)
	mustPip(t, g, "B->M", b, m, 0, 1, 1.0)
	mustPip(t, g, "M->X", m, x, 1, 0, 1.0)
	mustPip(t, g, "M->Y", m, y, 1, 0, 1.0)

	arcs := []model.Arc{
		{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: x, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0, NetName: "n0"},
		{SrcWire: b, SrcLoc: model.Coord{X: 0, Y: 1}, DstWire: y, DstLoc: model.Coord{X: 2, Y: 1}, Net: 1, NetName: "n1"},
	}
	r := NewRouter(g, Options{Pressure: 0.5, History: 0.5, RipUpIters: 3})
	w := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 2}}, Arcs: arcs}, nil)

	res := r.Route(context.Background(), w)
	if res.Committed != 1 || res.Failed != 1 {
		t.Fatalf("expected 1 committed / 1 failed, got %d/%d", res.Committed, res.Failed)
	}
	if res.Iters != 3 {
		t.Fatalf("expected the full rip-up budget to be spent, got %d iterations", res.Iters)
	}
	routes := w.Routes()
	committed := 0
	for _, rt := range routes {
		if rt.Status == ArcCommitted {
			committed++
			if len(rt.Pips) == 0 {
				t.Fatalf("committed arc has no pip chain")
			}
		}
		if rt.Status == ArcFailed && rt.Pips != nil {
			t.Fatalf("failed arc kept a pip chain: %v", rt.Pips)
		}
	}
	if committed != 1 {
		t.Fatalf("expected exactly one committed route, got %d", committed)
	}
}

// Arcs of the same net legitimately share wires; that must not register as
// congestion.
func TestSameNetSharingIsNotCongestion(t *testing.T) {
	g := device.NewGrid(3, 2)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	m := mustWire(t, g, "M", 1, 0, 1.0)
	x := mustWire(t, g, "X", 2, 0, 1.0)
	y := mustWire(t, g, "Y", 2, 1, 1.0)

	mustPip(t, g, "A->M", a, m, 0, 0, 1.0)
	mustPip(t, g, "M->X", m, x, 1, 0, 1.0)
	mustPip(t, g, "M->Y", m, y, 1, 0, 1.0)

	arcs := []model.Arc{
		{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: x, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0, NetName: "fan"},
		{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: y, DstLoc: model.Coord{X: 2, Y: 1}, Net: 0, NetName: "fan"},
	}
	r := NewRouter(g, Options{Pressure: 0.5, History: 0.5})
	w := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 2}}, Arcs: arcs}, nil)

	res := r.Route(context.Background(), w)
	if res.Committed != 2 || res.Failed != 0 {
		t.Fatalf("expected both fanout arcs committed, got %d/%d", res.Committed, res.Failed)
	}
	if res.Iters != 1 {
		t.Fatalf("expected convergence without rip-up, got %d iterations", res.Iters)
	}
}

func TestRouteUnreachableSinkFails(t *testing.T) {
	g := device.NewGrid(3, 1)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	b := mustWire(t, g, "B", 1, 0, 1.0)
	island := mustWire(t, g, "ISLAND", 2, 0, 1.0)
	mustPip(t, g, "A->B", a, b, 0, 0, 1.0)

	arcs := []model.Arc{
		{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: island, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0, NetName: "n0"},
		{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: b, DstLoc: model.Coord{X: 1, Y: 0}, Net: 1, NetName: "n1"},
	}
	r := NewRouter(g, Options{Pressure: 0.5, History: 0.5})
	w := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 1}}, Arcs: arcs}, nil)

	res := r.Route(context.Background(), w)
	if res.Committed != 1 || res.Failed != 1 {
		t.Fatalf("expected the reachable arc committed and the island arc failed, got %d/%d",
			res.Committed, res.Failed)
	}
	routes := w.Routes()
	if routes[0].Status != ArcFailed {
		t.Fatalf("expected island arc failed, got %v", routes[0].Status)
	}
	if routes[1].Status != ArcCommitted {
		t.Fatalf("expected reachable arc committed, got %v", routes[1].Status)
	}
}

// Intermediate wires outside the worker's box are off limits; only the sink
// wire itself may sit on the far side of the boundary.
func TestSearchStaysInsideBox(t *testing.T) {
	g := device.NewGrid(3, 1)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	b := mustWire(t, g, "B", 1, 0, 1.0)
	c := mustWire(t, g, "C", 2, 0, 1.0)
	mustPip(t, g, "A->B", a, b, 0, 0, 1.0)
	mustPip(t, g, "B->C", b, c, 1, 0, 1.0)

	arc := model.Arc{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: c, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0}
	r := NewRouter(g, Options{Pressure: 0.5, History: 0.5})

	narrow := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 1, Y: 1}}, Arcs: []model.Arc{arc}}, nil)
	if res := r.Route(context.Background(), narrow); res.Failed != 1 {
		t.Fatalf("expected routing through an out-of-box wire to fail, got %+v", res)
	}

	full := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 1}}, Arcs: []model.Arc{arc}}, nil)
	if res := r.Route(context.Background(), full); res.Committed != 1 {
		t.Fatalf("expected the full box to route, got %+v", res)
	}
}

func TestSearchLimitExhaustionFailsArc(t *testing.T) {
	g := device.NewGrid(3, 1)
	a := mustWire(t, g, "A", 0, 0, 1.0)
	b := mustWire(t, g, "B", 1, 0, 1.0)
	c := mustWire(t, g, "C", 2, 0, 1.0)
	mustPip(t, g, "A->B", a, b, 0, 0, 1.0)
	mustPip(t, g, "B->C", b, c, 1, 0, 1.0)

	arc := model.Arc{SrcWire: a, SrcLoc: model.Coord{X: 0, Y: 0}, DstWire: c, DstLoc: model.Coord{X: 2, Y: 0}, Net: 0}
	r := NewRouter(g, Options{Pressure: 0.5, History: 0.5, SearchLimit: 1})
	w := NewWorker(Partition{Box: model.Box{Max: model.Coord{X: 3, Y: 1}}, Arcs: []model.Arc{arc}}, nil)

	if res := r.Route(context.Background(), w); res.Failed != 1 {
		t.Fatalf("expected search budget exhaustion to fail the arc, got %+v", res)
	}
}

func TestResourceStateMerge(t *testing.T) {
	left := make(resourceState)
	left.get(1).claim(10)
	left.get(1).history = 2

	right := make(resourceState)
	right.get(1).claim(11)
	right.get(1).history = 3
	right.get(2).claim(10)

	left.merge(right)
	if got := left.get(1).usage(); got != 2 {
		t.Fatalf("expected merged usage 2 on wire 1, got %d", got)
	}
	if got := left.get(1).history; got != 5 {
		t.Fatalf("expected merged history 5 on wire 1, got %v", got)
	}
	if got := left.get(2).usage(); got != 1 {
		t.Fatalf("expected usage 1 on wire 2, got %d", got)
	}
}
