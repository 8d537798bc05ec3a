package systems

import (
	"math"

	"github.com/pthm-cable/duskfall/components"
)

// GridView is a read-only accessor over a TileGrid whose read lock is held
// by the caller. It is only valid inside TileGrid.View.
type GridView struct {
	g *TileGrid
}

// Width returns the grid width in tiles.
func (v GridView) Width() int { return v.g.width }

// Height returns the grid height in tiles.
func (v GridView) Height() int { return v.g.height }

// Depth returns the number of z-levels.
func (v GridView) Depth() int { return len(v.g.blocked) }

// InBounds reports whether a cell exists.
func (v GridView) InBounds(x, y, z int) bool { return v.g.inBoundsLocked(x, y, z) }

// Blocked reports whether a cell blocks movement. Out-of-bounds cells block.
func (v GridView) Blocked(x, y, z int) bool { return v.g.blockedLocked(x, y, z) }

// Tile returns the tile on a layer.
func (v GridView) Tile(x, y, z int, layer Layer) TileID { return v.g.tileLocked(x, y, z, layer) }

// Indoor reports whether a cell lies in an indoor zone.
func (v GridView) Indoor(x, y, z int) bool { return v.g.indoorLocked(x, y, z) }

// IsDoor reports whether a door occupies the wall or object layer of a cell.
func (v GridView) IsDoor(x, y, z int) bool {
	return v.g.tileLocked(x, y, z, LayerWall).IsDoor() || v.g.tileLocked(x, y, z, LayerObject).IsDoor()
}

// WorldToCell converts a world position to the cell containing it.
func WorldToCell(x, y float32, z int, tileSize float32) components.Cell {
	return components.Cell{
		X: int(math.Floor(float64(x / tileSize))),
		Y: int(math.Floor(float64(y / tileSize))),
		Z: z,
	}
}

// CellCenter returns the world position of a cell's center.
func CellCenter(c components.Cell, tileSize float32) (float32, float32) {
	return (float32(c.X) + 0.5) * tileSize, (float32(c.Y) + 0.5) * tileSize
}
