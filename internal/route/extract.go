package route

import (
	"github.com/auramarua/nextpnr/model"
)

// ExtractArcs converts per-net connectivity into the explicit arc list the
// partitioner and router consume. Nets marked global contribute no arcs, as
// do nets without a driver or whose driver has no resolvable source wire;
// these are deliberate skips, not errors. For every remaining net, one arc
// is emitted per (sink pin, candidate sink wire) pair.
//
// Extraction never mutates host state. For a fixed host snapshot the
// resulting arc set is deterministic; the order follows the net table.
func ExtractArcs(host Host, nets []*model.Net) []model.Arc {
	var arcs []model.Arc
	for _, net := range nets {
		if net == nil || net.Global {
			continue
		}
		if net.Driver == nil {
			continue
		}
		srcWire, ok := host.SourceWire(net)
		if !ok {
			continue
		}
		srcLoc := net.Driver.Loc
		for _, user := range net.Users {
			for _, sinkWire := range host.SinkWires(net, user) {
				arcs = append(arcs, model.Arc{
					SrcWire: srcWire,
					SrcLoc:  srcLoc,
					DstWire: sinkWire,
					DstLoc:  user.Loc,
					Net:     net.ID,
					NetName: net.Name,
				})
			}
		}
	}
	return arcs
}

// fanout counts the arcs a single net would contribute, without building them.
func fanout(host Host, net *model.Net) int {
	if net == nil || net.Global || net.Driver == nil {
		return 0
	}
	if _, ok := host.SourceWire(net); !ok {
		return 0
	}
	n := 0
	for _, user := range net.Users {
		n += len(host.SinkWires(net, user))
	}
	return n
}

// highestFanoutNet returns the non-global net with the most arcs and the
// bounding span of its sink locations. Used only for startup diagnostics.
func highestFanoutNet(host Host, nets []*model.Net) (*model.Net, int, model.Box) {
	var best *model.Net
	bestCount := 0
	for _, net := range nets {
		if c := fanout(host, net); c > bestCount {
			best, bestCount = net, c
		}
	}
	var span model.Box
	if best != nil && len(best.Users) > 0 {
		span.Min = best.Users[0].Loc
		span.Max = best.Users[0].Loc
		for _, user := range best.Users[1:] {
			span.Min = span.Min.Min(user.Loc)
			span.Max = span.Max.Max(user.Loc)
		}
	}
	return best, bestCount, span
}
