// Package route computes physical wire routes for nets over a device's
// routing-resource grid: it extracts per-net connectivity into arcs,
// recursively partitions the arc set into independent spatial regions, and
// routes each region in parallel with a negotiated-congestion search.
package route

import "github.com/auramarua/nextpnr/model"

// Host is the device-side collaborator the routing core works against. It
// owns placement, the wire/pip graph, and cell locations; the core only
// queries it and commits finished routes back through it.
//
// The wire, pip, and net tables exposed here must stay stable for the
// duration of a routing run; workers share them by reference without
// synchronization.
type Host interface {
	// GridDims returns the (width, height) of the routing-resource grid.
	GridDims() (int, int)

	// Wires enumerates every wire in the device.
	Wires() []model.Wire

	// Pips enumerates every programmable interconnect point.
	Pips() []model.Pip

	// PipsFrom returns the pips whose source is the given wire.
	PipsFrom(w model.WireID) []model.Pip

	// ClaimNets transfers ownership of the per-net mutable descriptors to
	// the caller. It succeeds at most once per host; a second claim
	// returns an error. Routing a host twice is not supported.
	ClaimNets() ([]*model.Net, error)

	// SourceWire resolves the physical source wire for a net's driver.
	// ok is false when the driver pin has no candidate source wire.
	SourceWire(n *model.Net) (w model.WireID, ok bool)

	// SinkWires enumerates the candidate sink wires for one sink pin of a
	// net. An empty slice means the pin cannot be reached and yields no
	// arcs.
	SinkWires(n *model.Net, user model.PortRef) []model.WireID

	// BindRoute commits a finally-chosen route for a net: the ordered pip
	// chain from the arc's source wire to its sink wire.
	BindRoute(n model.NetID, pips []model.PipID) error
}
