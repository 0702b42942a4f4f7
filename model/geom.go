package model

// Coord is an integer position on the routing-resource grid.
type Coord struct {
	X int
	Y int
}

// Min returns the componentwise minimum of c and o.
func (c Coord) Min(o Coord) Coord {
	if o.X < c.X {
		c.X = o.X
	}
	if o.Y < c.Y {
		c.Y = o.Y
	}
	return c
}

// Max returns the componentwise maximum of c and o.
func (c Coord) Max(o Coord) Coord {
	if o.X > c.X {
		c.X = o.X
	}
	if o.Y > c.Y {
		c.Y = o.Y
	}
	return c
}

// Box is an axis-aligned rectangle of grid coordinates. It is half-open:
// a coordinate c is inside when Min.X <= c.X < Max.X and Min.Y <= c.Y < Max.Y.
// Half-open boxes let four quadrant boxes tile their parent exactly.
type Box struct {
	Min Coord
	Max Coord
}

// Contains reports whether c lies inside the box.
func (b Box) Contains(c Coord) bool {
	return c.X >= b.Min.X && c.X < b.Max.X && c.Y >= b.Min.Y && c.Y < b.Max.Y
}

// Width returns the box extent along X.
func (b Box) Width() int { return b.Max.X - b.Min.X }

// Height returns the box extent along Y.
func (b Box) Height() int { return b.Max.Y - b.Min.Y }

// Area returns the number of grid positions covered by the box.
func (b Box) Area() int {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
