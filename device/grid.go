// Package device implements the host side of the routing pipeline: an
// in-memory store of the routing-resource grid (wires, pips) and the net
// table, answering the queries the routing core needs and accepting the
// committed routes it produces.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/auramarua/nextpnr/model"
)

// ErrNetsClaimed is returned by ClaimNets when the net table has already
// been handed to a routing run. A device is routed at most once.
var ErrNetsClaimed = errors.New("device: net table already claimed")

type sinkKey struct {
	net  model.NetID
	cell string
	pin  string
}

// Grid is an in-memory, thread-safe routing-resource store. It implements
// the routing core's Host interface.
type Grid struct {
	mu sync.RWMutex

	width  int
	height int

	wires      []model.Wire
	wireByName map[string]model.WireID
	pips       []model.Pip
	pipsFrom   map[model.WireID][]model.Pip

	nets       []*model.Net
	netSources map[model.NetID]model.WireID
	netSinks   map[sinkKey][]model.WireID

	claimed bool
	routes  map[model.NetID][][]model.PipID
}

// NewGrid constructs an empty device grid of the given dimensions.
func NewGrid(width, height int) *Grid {
	return &Grid{
		width:      width,
		height:     height,
		wireByName: make(map[string]model.WireID),
		pipsFrom:   make(map[model.WireID][]model.Pip),
		netSources: make(map[model.NetID]model.WireID),
		netSinks:   make(map[sinkKey][]model.WireID),
		routes:     make(map[model.NetID][][]model.PipID),
	}
}

// AddWire registers a wire and returns its assigned ID. It returns an error
// when the name is already taken or the location is off-grid.
func (g *Grid) AddWire(name string, loc model.Coord, delay float64) (model.WireID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.wireByName[name]; exists {
		return 0, fmt.Errorf("wire with name %q already exists", name)
	}
	if loc.X < 0 || loc.X >= g.width || loc.Y < 0 || loc.Y >= g.height {
		return 0, fmt.Errorf("wire %q location (%d, %d) outside %dx%d grid", name, loc.X, loc.Y, g.width, g.height)
	}
	id := model.WireID(len(g.wires))
	g.wires = append(g.wires, model.Wire{ID: id, Name: name, Loc: loc, Delay: delay})
	g.wireByName[name] = id
	return id, nil
}

// AddPip registers a directional pip between two existing wires.
func (g *Grid) AddPip(name string, src, dst model.WireID, loc model.Coord, delay float64) (model.PipID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if int(src) < 0 || int(src) >= len(g.wires) {
		return 0, fmt.Errorf("pip %q source wire %d not found", name, src)
	}
	if int(dst) < 0 || int(dst) >= len(g.wires) {
		return 0, fmt.Errorf("pip %q destination wire %d not found", name, dst)
	}
	id := model.PipID(len(g.pips))
	pip := model.Pip{ID: id, Name: name, Src: src, Dst: dst, Loc: loc, Delay: delay}
	g.pips = append(g.pips, pip)
	g.pipsFrom[src] = append(g.pipsFrom[src], pip)
	return id, nil
}

// AddNet registers a net. The driver and user pins carry cell locations;
// wire connectivity is attached separately via ConnectDriver and
// ConnectSink.
func (g *Grid) AddNet(n *model.Net) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n == nil {
		return fmt.Errorf("net must not be nil")
	}
	for _, existing := range g.nets {
		if existing.ID == n.ID {
			return fmt.Errorf("net with ID %d already exists", n.ID)
		}
		if existing.Name == n.Name {
			return fmt.Errorf("net with name %q already exists", n.Name)
		}
	}
	g.nets = append(g.nets, n)
	return nil
}

// ConnectDriver binds a net's driver pin to its physical source wire.
func (g *Grid) ConnectDriver(net model.NetID, w model.WireID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if int(w) < 0 || int(w) >= len(g.wires) {
		return fmt.Errorf("source wire %d not found for net %d", w, net)
	}
	g.netSources[net] = w
	return nil
}

// ConnectSink binds one sink pin of a net to its candidate sink wires.
func (g *Grid) ConnectSink(net model.NetID, cell, pin string, wires ...model.WireID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, w := range wires {
		if int(w) < 0 || int(w) >= len(g.wires) {
			return fmt.Errorf("sink wire %d not found for net %d", w, net)
		}
	}
	key := sinkKey{net: net, cell: cell, pin: pin}
	g.netSinks[key] = append(g.netSinks[key], wires...)
	return nil
}

// WireByName resolves a wire ID from its name.
func (g *Grid) WireByName(name string) (model.WireID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.wireByName[name]
	return id, ok
}

// ---- Host interface ----

// GridDims returns the grid's (width, height).
func (g *Grid) GridDims() (int, int) {
	return g.width, g.height
}

// Wires returns a snapshot of all wires.
func (g *Grid) Wires() []model.Wire {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]model.Wire(nil), g.wires...)
}

// Pips returns a snapshot of all pips.
func (g *Grid) Pips() []model.Pip {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]model.Pip(nil), g.pips...)
}

// PipsFrom returns the pips whose source is the given wire.
func (g *Grid) PipsFrom(w model.WireID) []model.Pip {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pipsFrom[w]
}

// ClaimNets transfers the net table to the caller. The transfer succeeds at
// most once; afterwards the per-net descriptors belong to the routing run
// until its routes are committed back.
func (g *Grid) ClaimNets() ([]*model.Net, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.claimed {
		return nil, ErrNetsClaimed
	}
	g.claimed = true
	return append([]*model.Net(nil), g.nets...), nil
}

// SourceWire resolves the physical source wire of a net's driver.
func (g *Grid) SourceWire(n *model.Net) (model.WireID, bool) {
	if n == nil {
		return 0, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.netSources[n.ID]
	return w, ok
}

// SinkWires enumerates the candidate sink wires for one sink pin of a net.
func (g *Grid) SinkWires(n *model.Net, user model.PortRef) []model.WireID {
	if n == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.netSinks[sinkKey{net: n.ID, cell: user.Cell, pin: user.Pin}]
}

// BindRoute commits one finally-chosen arc route for a net. Multiple arcs
// of the same net accumulate.
func (g *Grid) BindRoute(n model.NetID, pips []model.PipID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range pips {
		if int(id) < 0 || int(id) >= len(g.pips) {
			return fmt.Errorf("pip %d not found while binding net %d", id, n)
		}
	}
	g.routes[n] = append(g.routes[n], append([]model.PipID(nil), pips...))
	return nil
}

// Routes returns the committed pip chains for a net.
func (g *Grid) Routes(n model.NetID) [][]model.PipID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.routes[n]
}
