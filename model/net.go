package model

// NetID identifies a logical signal net.
type NetID int32

// PortRef is one endpoint of a net: a pin of a placed cell.
type PortRef struct {
	Cell string
	Pin  string
	Loc  Coord
}

// Net is a logical signal with at most one driver and zero or more sinks.
// A net without a driver contributes no routing work; a net marked Global
// is excluded from per-net routing entirely.
type Net struct {
	ID     NetID
	Name   string
	Global bool

	// Driver is nil for driverless nets.
	Driver *PortRef

	// Users are the sink pins, in host order.
	Users []PortRef
}
