package route

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/auramarua/nextpnr/model"
)

// ErrPartitionInvariant reports a split whose geometry claims are
// inconsistent with the actual resource graph. Parallel-phase safety rests
// on the disjointness this check certifies, so it aborts the whole run.
var ErrPartitionInvariant = errors.New("route: partition invariant violated")

// SplitPolicy selects how the partitioner picks a split point inside a box.
type SplitPolicy string

const (
	// SplitBalanced places the split at the median of arc endpoint
	// coordinates, balancing arc counts across quadrants.
	SplitBalanced SplitPolicy = "balanced"
	// SplitCenter places the split at the geometric center of the box.
	SplitCenter SplitPolicy = "center"
)

// DefaultReservedPatterns are wire-name substrings whose routing behavior is
// unsafe to reason about per-quadrant: long carry chains, high-fanout shared
// control resources, and chip-boundary pads. Arcs touching them are always
// routed in the serial special pass.
var DefaultReservedPatterns = []string{
	"FCO_SLICE",
	"Q6_SLICE",
	"DDR",
	"PADDO",
}

// Partition is one leaf region of the recursive split: a bounding box, the
// arcs assigned to it, and the hierarchical name path built from quadrant
// suffixes (for example "_SE_NW").
type Partition struct {
	Box  model.Box
	Name string
	Arcs []model.Arc
}

// Partitioner recursively splits an arc set into quadrant leaf partitions
// plus a special arc set that must be routed serially.
type Partitioner struct {
	wireNames map[model.WireID]string
	pips      []model.Pip

	reserved  []string
	policy    SplitPolicy
	maxDepth  int
	minArcs   int
	minExtent int
}

// NewPartitioner builds a partitioner over the host's resource geometry.
// Zero values fall back to defaults: balanced splits, depth 2, no minimum
// arc count, minimum child extent 1.
func NewPartitioner(host Host, reserved []string, policy SplitPolicy, maxDepth, minArcs, minExtent int) *Partitioner {
	wires := host.Wires()
	names := make(map[model.WireID]string, len(wires))
	for _, w := range wires {
		names[w.ID] = w.Name
	}
	if reserved == nil {
		reserved = DefaultReservedPatterns
	}
	if policy == "" {
		policy = SplitBalanced
	}
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if minExtent <= 0 {
		minExtent = 1
	}
	return &Partitioner{
		wireNames: names,
		pips:      host.Pips(),
		reserved:  reserved,
		policy:    policy,
		maxDepth:  maxDepth,
		minArcs:   minArcs,
		minExtent: minExtent,
	}
}

// Reserved reports whether an arc touches a reserved resource by name.
// Such arcs bypass geometric partitioning at every recursion depth.
func (p *Partitioner) Reserved(arc model.Arc) bool {
	src := p.wireNames[arc.SrcWire]
	dst := p.wireNames[arc.DstWire]
	for _, pat := range p.reserved {
		if strings.Contains(src, pat) || strings.Contains(dst, pat) {
			return true
		}
	}
	return false
}

// PreFilter splits arcs into a partitionable list and the reserved-resource
// special list. It runs before any geometric partitioning.
func (p *Partitioner) PreFilter(arcs []model.Arc) (partitionable, special []model.Arc) {
	partitionable = make([]model.Arc, 0, len(arcs))
	for _, arc := range arcs {
		if p.Reserved(arc) {
			special = append(special, arc)
		} else {
			partitionable = append(partitionable, arc)
		}
	}
	return partitionable, special
}

// Partition recursively splits arcs within box into leaf partitions plus the
// special arcs that straddle a split line or touch reserved resources.
// Every input arc lands in exactly one leaf or in the special list.
func (p *Partitioner) Partition(arcs []model.Arc, box model.Box) ([]Partition, []model.Arc, error) {
	var leaves []Partition
	var special []model.Arc
	if err := p.split(arcs, box, "", 0, &leaves, &special); err != nil {
		return nil, nil, err
	}
	return leaves, special, nil
}

func (p *Partitioner) split(arcs []model.Arc, box model.Box, name string, depth int, leaves *[]Partition, special *[]model.Arc) error {
	if depth >= p.maxDepth || len(arcs) < p.minArcs ||
		box.Width() < 2*p.minExtent || box.Height() < 2*p.minExtent {
		*leaves = append(*leaves, Partition{Box: box, Name: name, Arcs: arcs})
		return nil
	}

	splitAt := p.splitPoint(arcs, box)
	boxes := quadrantBoxes(box, splitAt)
	if err := p.sanityCheck(box, boxes, splitAt); err != nil {
		return err
	}

	quadArcs := [4][]model.Arc{}
	for _, arc := range arcs {
		if p.Reserved(arc) {
			*special = append(*special, arc)
			continue
		}
		src, srcOK := quadrantOf(boxes, arc.SrcLoc)
		dst, dstOK := quadrantOf(boxes, arc.DstLoc)
		if !srcOK || !dstOK || src != dst {
			// Endpoints straddle the split; the arc's resources may
			// touch more than one quadrant box.
			*special = append(*special, arc)
			continue
		}
		quadArcs[src] = append(quadArcs[src], arc)
	}

	for i, suffix := range quadrantNames {
		if err := p.split(quadArcs[i], boxes[i], name+suffix, depth+1, leaves, special); err != nil {
			return err
		}
	}
	return nil
}

// quadrantNames orders the four children the way the router reports them.
var quadrantNames = [4]string{"_NE", "_SE", "_SW", "_NW"}

// quadrantBoxes cuts box at the split point into four half-open children,
// indexed in quadrantNames order.
func quadrantBoxes(box model.Box, split model.Coord) [4]model.Box {
	return [4]model.Box{
		{Min: box.Min, Max: split},                                                             // NE
		{Min: model.Coord{X: split.X, Y: box.Min.Y}, Max: model.Coord{X: box.Max.X, Y: split.Y}}, // SE
		{Min: split, Max: box.Max},                                                             // SW
		{Min: model.Coord{X: box.Min.X, Y: split.Y}, Max: model.Coord{X: split.X, Y: box.Max.Y}}, // NW
	}
}

func quadrantOf(boxes [4]model.Box, c model.Coord) (int, bool) {
	for i, b := range boxes {
		if b.Contains(c) {
			return i, true
		}
	}
	return 0, false
}

// splitPoint picks the split coordinate inside box according to the policy,
// clamped so every child box is non-empty.
func (p *Partitioner) splitPoint(arcs []model.Arc, box model.Box) model.Coord {
	var split model.Coord
	switch p.policy {
	case SplitCenter:
		split = model.Coord{
			X: box.Min.X + box.Width()/2,
			Y: box.Min.Y + box.Height()/2,
		}
	default:
		xs := make([]int, 0, 2*len(arcs))
		ys := make([]int, 0, 2*len(arcs))
		for _, arc := range arcs {
			xs = append(xs, arc.SrcLoc.X, arc.DstLoc.X)
			ys = append(ys, arc.SrcLoc.Y, arc.DstLoc.Y)
		}
		if len(xs) == 0 {
			return model.Coord{X: box.Min.X + box.Width()/2, Y: box.Min.Y + box.Height()/2}
		}
		sort.Ints(xs)
		sort.Ints(ys)
		split = model.Coord{X: xs[len(xs)/2], Y: ys[len(ys)/2]}
	}
	split.X = clamp(split.X, box.Min.X+1, box.Max.X-1)
	split.Y = clamp(split.Y, box.Min.Y+1, box.Max.Y-1)
	return split
}

// sanityCheck validates the chosen split against the resource geometry: the
// children must tile the parent exactly, and every pip inside the parent box
// must land in exactly one child. Any inconsistency is fatal.
func (p *Partitioner) sanityCheck(parent model.Box, boxes [4]model.Box, split model.Coord) error {
	if !parent.Contains(split) {
		return fmt.Errorf("%w: split point (%d, %d) outside box (%d, %d)-(%d, %d)",
			ErrPartitionInvariant, split.X, split.Y,
			parent.Min.X, parent.Min.Y, parent.Max.X, parent.Max.Y)
	}
	area := 0
	for _, b := range boxes {
		area += b.Area()
	}
	if area != parent.Area() {
		return fmt.Errorf("%w: child areas sum to %d, parent area is %d",
			ErrPartitionInvariant, area, parent.Area())
	}
	for _, pip := range p.pips {
		if !parent.Contains(pip.Loc) {
			continue
		}
		claims := 0
		for _, b := range boxes {
			if b.Contains(pip.Loc) {
				claims++
			}
		}
		if claims != 1 {
			return fmt.Errorf("%w: pip %q at (%d, %d) claimed by %d quadrants",
				ErrPartitionInvariant, pip.Name, pip.Loc.X, pip.Loc.Y, claims)
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
