package model

// WireID identifies a physical wire in the routing-resource graph.
type WireID int32

// PipID identifies a programmable interconnect point.
type PipID int32

// Wire is a physical routing wire. Name is used only for pattern-based
// special-casing and diagnostics; routing itself goes by ID.
type Wire struct {
	ID    WireID
	Name  string
	Loc   Coord
	Delay float64

	// Capacity is how many nets may legally occupy the wire at once.
	// Zero means the default capacity of one.
	Capacity int
}

// EffectiveCapacity returns the wire capacity, defaulting to one.
func (w Wire) EffectiveCapacity() int {
	if w.Capacity <= 0 {
		return 1
	}
	return w.Capacity
}

// Pip is a programmable switch connecting a source wire to a destination
// wire. Traversing a pip is directional.
type Pip struct {
	ID    PipID
	Name  string
	Src   WireID
	Dst   WireID
	Loc   Coord
	Delay float64
}
