package model

// Arc is a point-to-point routing obligation: one candidate physical source
// wire to one candidate physical sink wire, for one net. A single logical
// sink pin yields one arc per candidate sink wire.
type Arc struct {
	SrcWire WireID
	SrcLoc  Coord
	DstWire WireID
	DstLoc  Coord
	Net     NetID
	NetName string
}
