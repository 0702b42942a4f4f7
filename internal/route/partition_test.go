package route

import (
	"errors"
	"strings"
	"testing"

	"github.com/auramarua/nextpnr/model"
)

func newTestPartitioner(policy SplitPolicy, maxDepth int) *Partitioner {
	return &Partitioner{
		wireNames: make(map[model.WireID]string),
		reserved:  DefaultReservedPatterns,
		policy:    policy,
		maxDepth:  maxDepth,
		minExtent: 1,
	}
}

func testArc(net model.NetID, sx, sy, dx, dy int) model.Arc {
	return model.Arc{
		SrcLoc: model.Coord{X: sx, Y: sy},
		DstLoc: model.Coord{X: dx, Y: dy},
		Net:    net,
	}
}

func TestPreFilterSeparatesReservedArcs(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 2)
	p.wireNames[1] = "R2/FCO_SLICE"
	p.wireNames[2] = "X3/Y4/DDR_DQS"
	p.wireNames[3] = "X1/Y1/H02"

	arcs := []model.Arc{
		{SrcWire: 1, DstWire: 3, Net: 0},
		{SrcWire: 3, DstWire: 2, Net: 1},
		{SrcWire: 3, DstWire: 3, Net: 2},
	}
	partitionable, special := p.PreFilter(arcs)
	if len(special) != 2 {
		t.Fatalf("expected 2 special arcs, got %d", len(special))
	}
	if len(partitionable) != 1 || partitionable[0].Net != 2 {
		t.Fatalf("expected only net 2 partitionable, got %+v", partitionable)
	}
}

func TestPartitionCoversEveryArcExactlyOnce(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 2)
	box := model.Box{Max: model.Coord{X: 8, Y: 8}}

	var arcs []model.Arc
	for i := 0; i < 40; i++ {
		sx, sy := (i*3)%8, (i*5)%8
		dx, dy := (i*7)%8, (i*11)%8
		arcs = append(arcs, testArc(model.NetID(i), sx, sy, dx, dy))
	}

	leaves, special, err := p.Partition(arcs, box)
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}

	seen := make(map[model.Arc]int)
	for _, leaf := range leaves {
		for _, arc := range leaf.Arcs {
			seen[arc]++
		}
	}
	for _, arc := range special {
		seen[arc]++
	}
	if len(seen) != len(arcs) {
		t.Fatalf("expected %d distinct arcs in output, got %d", len(arcs), len(seen))
	}
	for arc, n := range seen {
		if n != 1 {
			t.Errorf("arc %+v appeared %d times", arc, n)
		}
	}
}

func TestPartitionLeavesTileTheGrid(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 2)
	box := model.Box{Max: model.Coord{X: 8, Y: 8}}

	leaves, _, err := p.Partition(nil, box)
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}
	if len(leaves) != 16 {
		t.Fatalf("expected 16 leaves at depth 2, got %d", len(leaves))
	}

	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			c := model.Coord{X: x, Y: y}
			claims := 0
			for _, leaf := range leaves {
				if leaf.Box.Contains(c) {
					claims++
				}
			}
			if claims != 1 {
				t.Fatalf("position (%d, %d) claimed by %d leaves", x, y, claims)
			}
		}
	}
}

func TestPartitionLeafNames(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 1)
	box := model.Box{Max: model.Coord{X: 4, Y: 4}}

	leaves, _, err := p.Partition(nil, box)
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}
	want := []string{"_NE", "_SE", "_SW", "_NW"}
	if len(leaves) != len(want) {
		t.Fatalf("expected %d leaves, got %d", len(want), len(leaves))
	}
	for i, leaf := range leaves {
		if leaf.Name != want[i] {
			t.Errorf("leaf %d: expected name %q, got %q", i, want[i], leaf.Name)
		}
	}

	p.maxDepth = 2
	leaves, _, err = p.Partition(nil, box)
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}
	for _, leaf := range leaves {
		if strings.Count(leaf.Name, "_") != 2 {
			t.Errorf("depth-2 leaf name %q is not a two-level path", leaf.Name)
		}
	}
}

func TestStraddlingArcGoesSpecial(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 1)
	box := model.Box{Max: model.Coord{X: 8, Y: 8}}

	crossing := testArc(0, 1, 1, 6, 6)
	contained := testArc(1, 1, 1, 2, 2)
	leaves, special, err := p.Partition([]model.Arc{crossing, contained}, box)
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}
	if len(special) != 1 || special[0].Net != 0 {
		t.Fatalf("expected the crossing arc in special, got %+v", special)
	}
	total := 0
	for _, leaf := range leaves {
		total += len(leaf.Arcs)
	}
	if total != 1 {
		t.Fatalf("expected 1 arc in leaves, got %d", total)
	}
}

func TestReservedArcSpecialAtEveryDepth(t *testing.T) {
	// An arc on a reserved resource must reach the special list even when
	// its endpoints sit comfortably inside a single deep quadrant.
	p := newTestPartitioner(SplitCenter, 2)
	p.wireNames[7] = "X1/Y1/PADDO_PIO"

	arc := model.Arc{SrcWire: 7, DstWire: 0, SrcLoc: model.Coord{X: 1, Y: 1}, DstLoc: model.Coord{X: 1, Y: 1}, Net: 9}
	leaves, special, err := p.Partition([]model.Arc{arc}, model.Box{Max: model.Coord{X: 8, Y: 8}})
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}
	if len(special) != 1 {
		t.Fatalf("expected reserved arc in special, got %d special arcs", len(special))
	}
	for _, leaf := range leaves {
		if len(leaf.Arcs) != 0 {
			t.Fatalf("reserved arc leaked into leaf %q", leaf.Name)
		}
	}
}

func TestMinExtentStopsSplitting(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 4)
	p.minExtent = 2
	box := model.Box{Max: model.Coord{X: 3, Y: 3}}

	leaves, _, err := p.Partition([]model.Arc{testArc(0, 0, 0, 2, 2)}, box)
	if err != nil {
		t.Fatalf("unexpected partition error: %v", err)
	}
	if len(leaves) != 1 {
		t.Fatalf("expected a single leaf for a box below minimum extent, got %d", len(leaves))
	}
	if leaves[0].Box != box {
		t.Fatalf("expected the root box back, got %+v", leaves[0].Box)
	}
}

func TestSplitPointClamped(t *testing.T) {
	p := newTestPartitioner(SplitBalanced, 1)
	box := model.Box{Max: model.Coord{X: 4, Y: 4}}

	// All endpoints pile up in one corner; the median would land on the
	// box edge and produce empty children without clamping.
	arcs := []model.Arc{testArc(0, 0, 0, 0, 0), testArc(1, 0, 0, 0, 0)}
	split := p.splitPoint(arcs, box)
	if split != (model.Coord{X: 1, Y: 1}) {
		t.Fatalf("expected clamped split (1, 1), got (%d, %d)", split.X, split.Y)
	}
}

func TestSanityCheckRejectsSplitOutsideBox(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 1)
	parent := model.Box{Max: model.Coord{X: 4, Y: 4}}
	boxes := quadrantBoxes(parent, model.Coord{X: 2, Y: 2})

	err := p.sanityCheck(parent, boxes, model.Coord{X: 5, Y: 5})
	if !errors.Is(err, ErrPartitionInvariant) {
		t.Fatalf("expected ErrPartitionInvariant, got %v", err)
	}
}

func TestSanityCheckRejectsAreaMismatch(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 1)
	parent := model.Box{Max: model.Coord{X: 4, Y: 4}}
	boxes := quadrantBoxes(parent, model.Coord{X: 2, Y: 2})
	boxes[0].Max = model.Coord{X: 1, Y: 1}

	err := p.sanityCheck(parent, boxes, model.Coord{X: 2, Y: 2})
	if !errors.Is(err, ErrPartitionInvariant) {
		t.Fatalf("expected ErrPartitionInvariant, got %v", err)
	}
}

func TestSanityCheckRejectsDoublyClaimedPip(t *testing.T) {
	p := newTestPartitioner(SplitCenter, 1)
	p.pips = []model.Pip{{ID: 0, Name: "P0", Loc: model.Coord{X: 0, Y: 0}}}
	parent := model.Box{Max: model.Coord{X: 4, Y: 4}}

	// Hand-built child boxes whose areas sum correctly but overlap at the
	// pip's position, leaving another row unclaimed.
	boxes := [4]model.Box{
		{Min: model.Coord{X: 0, Y: 0}, Max: model.Coord{X: 4, Y: 1}},
		{Min: model.Coord{X: 0, Y: 1}, Max: model.Coord{X: 4, Y: 2}},
		{Min: model.Coord{X: 0, Y: 0}, Max: model.Coord{X: 4, Y: 1}},
		{Min: model.Coord{X: 0, Y: 3}, Max: model.Coord{X: 4, Y: 4}},
	}
	err := p.sanityCheck(parent, boxes, model.Coord{X: 2, Y: 2})
	if !errors.Is(err, ErrPartitionInvariant) {
		t.Fatalf("expected ErrPartitionInvariant, got %v", err)
	}
}
