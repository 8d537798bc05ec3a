package systems

import (
	"sync"

	"github.com/pthm-cable/duskfall/components"
)

// tileCell is one layer's occupant of a grid cell.
type tileCell struct {
	id  TileID
	rot uint8
}

// TileGrid stores floor, wall, and object layers over any number of z-levels,
// plus a movement-blocking cache and an indoor zone map.
//
// The grid is written by the simulation thread and read concurrently by
// path search workers. Writers take the write lock; a search holds one read
// lock for its whole duration through View.
type TileGrid struct {
	mu       sync.RWMutex
	width    int
	height   int
	tileSize float32

	layers  [NumLayers][][]tileCell // [layer][z][y*width+x]
	blocked [][]bool                // [z][y*width+x]
	indoor  [][]bool                // [z][y*width+x]
}

// NewTileGrid creates an empty grid with the given dimensions in tiles.
func NewTileGrid(width, height, levels int, tileSize float32) *TileGrid {
	if levels < 1 {
		levels = 1
	}
	g := &TileGrid{
		width:    width,
		height:   height,
		tileSize: tileSize,
	}
	g.extendLocked(levels - 1)
	return g
}

// Width returns the grid width in tiles.
func (g *TileGrid) Width() int { return g.width }

// Height returns the grid height in tiles.
func (g *TileGrid) Height() int { return g.height }

// TileSize returns the edge length of a tile in world units.
func (g *TileGrid) TileSize() float32 { return g.tileSize }

// Depth returns the number of z-levels.
func (g *TileGrid) Depth() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.blocked)
}

// GetTile returns the tile at a cell, or TileEmpty for out-of-range or unpopulated cells.
func (g *TileGrid) GetTile(x, y, z int, layer Layer) TileID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tileLocked(x, y, z, layer)
}

// Rotation returns the rotation of the tile at a cell.
func (g *TileGrid) Rotation(x, y, z int, layer Layer) uint8 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.inBoundsLocked(x, y, z) || layer >= NumLayers {
		return 0
	}
	return g.layers[layer][z][y*g.width+x].rot
}

// SetTile places a tile and recomputes the collision cache for that cell before returning.
// A z beyond the current depth grows the grid, filling new levels with empty tiles.
// Out-of-range x, y, or negative z are ignored.
func (g *TileGrid) SetTile(x, y, z int, id TileID, rot uint8, layer Layer) {
	if layer >= NumLayers || z < 0 || x < 0 || y < 0 || x >= g.width || y >= g.height {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.extendLocked(z)
	idx := y*g.width + x
	g.layers[layer][z][idx] = tileCell{id: id, rot: rot}
	g.blocked[z][idx] = g.layers[LayerWall][z][idx].id.BlocksMovement() ||
		g.layers[LayerObject][z][idx].id.BlocksMovement()
}

// CheckCollision reports whether a cell blocks movement. Out-of-bounds cells block.
func (g *TileGrid) CheckCollision(x, y, z int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.blockedLocked(x, y, z)
}

// SetIndoor marks a cell as belonging to an indoor zone.
func (g *TileGrid) SetIndoor(x, y, z int, indoor bool) {
	if z < 0 || x < 0 || y < 0 || x >= g.width || y >= g.height {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.extendLocked(z)
	g.indoor[z][y*g.width+x] = indoor
}

// IsIndoor reports whether a cell lies in an indoor zone.
func (g *TileGrid) IsIndoor(x, y, z int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.indoorLocked(x, y, z)
}

// InBounds reports whether a cell exists.
func (g *TileGrid) InBounds(x, y, z int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inBoundsLocked(x, y, z)
}

// View runs fn with a read-locked view of the grid. Every read through the
// view observes the same grid state. fn must not call locking TileGrid methods.
func (g *TileGrid) View(fn func(v GridView)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(GridView{g: g})
}

// HidingAt returns the hiding strength granted by the object at a cell.
func (g *TileGrid) HidingAt(x, y, z int) components.Hiding {
	switch g.GetTile(x, y, z, LayerObject).Def().Hiding {
	case 1:
		return components.HidingPassive
	case 2:
		return components.HidingActive
	}
	return components.HidingNone
}

// DoorAt returns the door tile at a cell and the layer it sits on.
func (g *TileGrid) DoorAt(x, y, z int) (TileID, Layer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, layer := range []Layer{LayerWall, LayerObject} {
		if id := g.tileLocked(x, y, z, layer); id.IsDoor() {
			return id, layer, true
		}
	}
	return TileEmpty, 0, false
}

// WorldToCell converts a world position to the cell containing it.
func (g *TileGrid) WorldToCell(x, y float32, z int) components.Cell {
	return WorldToCell(x, y, z, g.tileSize)
}

// CellCenter returns the world position of a cell's center.
func (g *TileGrid) CellCenter(c components.Cell) (float32, float32) {
	return CellCenter(c, g.tileSize)
}

func (g *TileGrid) inBoundsLocked(x, y, z int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height && z >= 0 && z < len(g.blocked)
}

func (g *TileGrid) tileLocked(x, y, z int, layer Layer) TileID {
	if !g.inBoundsLocked(x, y, z) || layer >= NumLayers {
		return TileEmpty
	}
	return g.layers[layer][z][y*g.width+x].id
}

func (g *TileGrid) blockedLocked(x, y, z int) bool {
	if !g.inBoundsLocked(x, y, z) {
		return true
	}
	return g.blocked[z][y*g.width+x]
}

func (g *TileGrid) indoorLocked(x, y, z int) bool {
	if !g.inBoundsLocked(x, y, z) {
		return false
	}
	return g.indoor[z][y*g.width+x]
}

// extendLocked grows the grid so that level z exists.
func (g *TileGrid) extendLocked(z int) {
	n := g.width * g.height
	for len(g.blocked) <= z {
		for l := range g.layers {
			g.layers[l] = append(g.layers[l], make([]tileCell, n))
		}
		g.blocked = append(g.blocked, make([]bool, n))
		g.indoor = append(g.indoor, make([]bool, n))
	}
}
