package systems

import "github.com/pthm-cable/duskfall/components"

// Visibility answers line-of-sight queries against a TileGrid.
//
// Sight does not cross z-levels and is limited to a maximum distance. A
// Bresenham line is traced between the two cells; the observer's and the
// target's own cells are not tested. Glass passes sight, hideable objects
// never block it, and any other collidable wall or object tile does.
//
// An observer standing outdoors cannot see into indoor zones: every indoor
// cell on the line blocks unless it is glass. The rule does not apply to
// indoor observers, so sight between the two is intentionally asymmetric.
type Visibility struct {
	grid        *TileGrid
	maxDistance float32
}

// NewVisibility creates a visibility service with the given maximum sight distance.
func NewVisibility(grid *TileGrid, maxDistance float32) *Visibility {
	return &Visibility{grid: grid, maxDistance: maxDistance}
}

// MaxDistance returns the default sight distance.
func (v *Visibility) MaxDistance() float32 {
	return v.maxDistance
}

// HasLineOfSight reports whether an observer at (ox, oy, oz) can see (tx, ty, tz).
func (v *Visibility) HasLineOfSight(ox, oy float32, oz int, tx, ty float32, tz int) bool {
	return v.HasLineOfSightWithin(ox, oy, oz, tx, ty, tz, v.maxDistance)
}

// HasLineOfSightWithin is HasLineOfSight with an explicit distance limit.
func (v *Visibility) HasLineOfSightWithin(ox, oy float32, oz int, tx, ty float32, tz int, maxDist float32) bool {
	if oz != tz {
		return false
	}
	if distanceSq(ox, oy, tx, ty) > maxDist*maxDist {
		return false
	}

	from := v.grid.WorldToCell(ox, oy, oz)
	to := v.grid.WorldToCell(tx, ty, tz)

	clear := false
	v.grid.View(func(g GridView) {
		clear = traceSight(g, from, to)
	})
	return clear
}

// traceSight walks the Bresenham line from one cell to another and reports
// whether every intermediate cell transmits sight.
func traceSight(g GridView, from, to components.Cell) bool {
	observerIndoor := g.Indoor(from.X, from.Y, from.Z)

	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}
	e := dx + dy
	x, y := from.X, from.Y

	for {
		if x == to.X && y == to.Y {
			return true
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
		if x == to.X && y == to.Y {
			return true
		}
		if !transmitsSight(g, x, y, from.Z, observerIndoor) {
			return false
		}
	}
}

// transmitsSight reports whether a single traced cell lets sight pass.
func transmitsSight(g GridView, x, y, z int, observerIndoor bool) bool {
	wall := g.Tile(x, y, z, LayerWall)
	obj := g.Tile(x, y, z, LayerObject)
	if wall.BlocksSight() || obj.BlocksSight() {
		return false
	}
	if !observerIndoor && g.Indoor(x, y, z) && !wall.IsGlass() && !obj.IsGlass() {
		return false
	}
	return true
}
