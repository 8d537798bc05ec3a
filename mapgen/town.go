// Package mapgen builds demo towns for headless sessions and tests.
package mapgen

import (
	"log/slog"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/systems"
)

// BuildingKind is what a building is used for.
type BuildingKind uint8

const (
	BuildingHouse BuildingKind = iota
	BuildingShop
	BuildingStation
)

// String returns the building kind name.
func (k BuildingKind) String() string {
	switch k {
	case BuildingShop:
		return "shop"
	case BuildingStation:
		return "station"
	}
	return "house"
}

// Building is a walled rectangle. X, Y, W and H include the walls.
type Building struct {
	Kind       BuildingKind
	X, Y, W, H int
	Door       components.Cell
	Entry      components.Cell // Floor cell just inside the door
	Locked     bool
}

// Interior reports whether c lies inside the walls.
func (b Building) Interior(c components.Cell) bool {
	return c.X > b.X && c.X < b.X+b.W-1 && c.Y > b.Y && c.Y < b.Y+b.H-1
}

// Town is a generated map with the landmarks agents navigate by.
type Town struct {
	Grid      *systems.TileGrid
	Landmarks components.Landmarks
	Buildings []Building
}

// Generator minimums, in tiles.
const (
	minBuildingW = 6
	minBuildingH = 5
	roadWidth    = 2
)

type lot struct {
	x, y, w, h int
	doorUp     bool // Door faces a road above the lot
}

type generator struct {
	cfg  config.TownConfig
	grid *systems.TileGrid
	rng  *rand.Rand
	w, h int

	roadX, roadY int
	reserved     []bool
	town         *Town
}

// Generate lays out a town on the configured world size: two crossing
// roads, buildings on the lots between them, work fields, and noise
// scattered vegetation. The same seed always yields the same town.
func Generate(cfg *config.Config, seed int64) *Town {
	w, h := cfg.World.Width, cfg.World.Height
	g := &generator{
		cfg:      cfg.Town,
		grid:     systems.NewTileGrid(w, h, cfg.World.Levels, float32(cfg.World.TileSize)),
		rng:      rand.New(rand.NewSource(seed)),
		w:        w,
		h:        h,
		roadX:    w / 2,
		roadY:    h / 2,
		reserved: make([]bool, w*h),
	}
	g.town = &Town{
		Grid: g.grid,
		Landmarks: components.Landmarks{
			WorkSpots: make(map[components.SubRole][]components.Cell),
		},
	}

	g.ground()
	g.roads()
	g.develop(g.lots())
	g.vegetation(seed)
	g.patrols()
	g.spawns()

	lm := &g.town.Landmarks
	slog.Info("town generated",
		"seed", seed,
		"size", w*h,
		"buildings", len(g.town.Buildings),
		"homes", len(lm.Homes),
		"hiding_spots", len(lm.HidingSpots),
	)
	return g.town
}

func (g *generator) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.w && y < g.h
}

func (g *generator) reserve(x, y int) {
	if g.inside(x, y) {
		g.reserved[y*g.w+x] = true
	}
}

func (g *generator) free(x, y int) bool {
	return g.inside(x, y) && !g.reserved[y*g.w+x]
}

func (g *generator) ground() {
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			g.grid.SetTile(x, y, 0, systems.TileGrass, 0, systems.LayerFloor)
		}
	}
}

func (g *generator) roads() {
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			onX := x >= g.roadX-roadWidth+1 && x <= g.roadX
			onY := y >= g.roadY-roadWidth+1 && y <= g.roadY
			if onX || onY {
				g.grid.SetTile(x, y, 0, systems.TileStone, 0, systems.LayerFloor)
				g.reserve(x, y)
			}
		}
	}
}

// lots cuts the four blocks between the roads into building lots, nearest
// to the crossing first.
func (g *generator) lots() []lot {
	lw, lh := max(g.cfg.LotWidth, minBuildingW+2), max(g.cfg.LotHeight, minBuildingH+2)
	left, right := [2]int{1, g.roadX - roadWidth}, [2]int{g.roadX + 1, g.w - 1}
	top, bottom := [2]int{1, g.roadY - roadWidth}, [2]int{g.roadY + 1, g.h - 1}

	var out []lot
	for _, xs := range [][2]int{left, right} {
		for _, ys := range [][2]int{top, bottom} {
			for y := ys[0]; y+lh <= ys[1]; y += lh {
				for x := xs[0]; x+lw <= xs[1]; x += lw {
					out = append(out, lot{x: x, y: y, w: lw, h: lh, doorUp: ys[0] > g.roadY})
				}
			}
		}
	}

	cx, cy := g.roadX, g.roadY
	dist := func(l lot) int {
		return abs(l.x+l.w/2-cx) + abs(l.y+l.h/2-cy)
	}
	sort.SliceStable(out, func(i, j int) bool { return dist(out[i]) < dist(out[j]) })
	return out
}

// develop assigns lots: the shop and station take the central lots, the
// outermost become work fields, and the rest are houses.
func (g *generator) develop(lots []lot) {
	fields := []components.SubRole{components.SubRoleFarmer, components.SubRoleMiner, components.SubRoleFisher}
	nFields := min(len(fields), max(0, len(lots)-3))

	for i, l := range lots {
		switch {
		case i == 0:
			g.building(l, BuildingShop)
		case i == 1:
			g.building(l, BuildingStation)
		case i >= len(lots)-nFields:
			g.field(l, fields[len(lots)-1-i])
		default:
			g.building(l, BuildingHouse)
		}
	}
}

func (g *generator) building(l lot, kind BuildingKind) {
	bw := minBuildingW + g.rng.Intn(l.w-2-minBuildingW+1)
	bh := minBuildingH + g.rng.Intn(l.h-2-minBuildingH+1)
	b := Building{
		Kind: kind,
		X:    l.x + 1 + g.rng.Intn(l.w-2-bw+1),
		Y:    l.y + 1 + g.rng.Intn(l.h-2-bh+1),
		W:    bw,
		H:    bh,
	}

	wall := systems.TileWallBrick
	if kind == BuildingHouse && g.rng.Intn(2) == 0 {
		wall = systems.TileWallWood
	}
	for y := b.Y; y < b.Y+b.H; y++ {
		for x := b.X; x < b.X+b.W; x++ {
			g.reserve(x, y)
			c := components.Cell{X: x, Y: y}
			if b.Interior(c) {
				g.grid.SetTile(x, y, 0, systems.TileWood, 0, systems.LayerFloor)
				g.grid.SetIndoor(x, y, 0, true)
				continue
			}
			g.grid.SetTile(x, y, 0, wall, 0, systems.LayerWall)
		}
	}

	// Door in the wall facing the road, never in a corner.
	doorX := b.X + 1 + g.rng.Intn(b.W-2)
	doorY, entryY, outsideY, farY := b.Y+b.H-1, b.Y+b.H-2, b.Y+b.H, b.Y+1
	if l.doorUp {
		doorY, entryY, outsideY, farY = b.Y, b.Y+1, b.Y-1, b.Y+b.H-2
	}
	b.Door = components.Cell{X: doorX, Y: doorY}
	b.Entry = components.Cell{X: doorX, Y: entryY}
	b.Locked = kind == BuildingHouse && g.rng.Float64() < g.cfg.LockedChance

	door := systems.TileDoorClosed
	if b.Locked {
		door = systems.TileDoorLocked
	}
	g.grid.SetTile(doorX, doorY, 0, door, 0, systems.LayerWall)
	g.reserve(doorX, outsideY)

	g.windows(b, doorY)

	lm := &g.town.Landmarks
	switch kind {
	case BuildingHouse:
		// Bed in the far corner from the door, a table in the other.
		bed := components.Cell{X: b.X + 1, Y: farY}
		g.grid.SetTile(bed.X, bed.Y, 0, systems.TileBed, 0, systems.LayerObject)
		g.grid.SetTile(b.X+b.W-2, farY, 0, systems.TileTable, 0, systems.LayerObject)
		lm.HidingSpots = append(lm.HidingSpots, bed)
		lm.Homes = append(lm.Homes, b.Entry)

	case BuildingShop:
		// Counter along the far wall; customers stand in front of it.
		for x := b.X + 1; x < b.X+b.W-1; x++ {
			g.grid.SetTile(x, farY, 0, systems.TileCounter, 0, systems.LayerObject)
		}
		front := farY + 1
		if l.doorUp {
			front = farY - 1
		}
		lm.Shop = components.Cell{X: b.X + b.W/2, Y: front}
		g.crates(b, l.doorUp)

	case BuildingStation:
		lm.PatrolPoints = append(lm.PatrolPoints, components.Cell{X: doorX, Y: outsideY})
	}

	g.town.Buildings = append(g.town.Buildings, b)
}

// windows glazes the wall sides other than the door's.
func (g *generator) windows(b Building, doorY int) {
	type side struct {
		horizontal bool
		fixed      int
	}
	sides := []side{
		{horizontal: true, fixed: b.Y},
		{horizontal: true, fixed: b.Y + b.H - 1},
		{horizontal: false, fixed: b.X},
		{horizontal: false, fixed: b.X + b.W - 1},
	}
	for _, s := range sides {
		if s.horizontal && s.fixed == doorY {
			continue
		}
		if g.rng.Float64() >= g.cfg.WindowChance {
			continue
		}
		if s.horizontal {
			x := b.X + 1 + g.rng.Intn(b.W-2)
			g.grid.SetTile(x, s.fixed, 0, systems.TileGlass, 0, systems.LayerWall)
		} else {
			y := b.Y + 1 + g.rng.Intn(b.H-2)
			g.grid.SetTile(s.fixed, y, 0, systems.TileGlass, 1, systems.LayerWall)
		}
	}
}

// crates stacks hideable crates along the shop's back wall.
func (g *generator) crates(b Building, doorUp bool) {
	y := b.Y - 1
	if doorUp {
		y = b.Y + b.H
	}
	placed := 0
	for x := b.X; x < b.X+b.W && placed < g.cfg.CratesNearShop; x += 2 {
		if !g.free(x, y) {
			continue
		}
		g.grid.SetTile(x, y, 0, systems.TileCrate, 0, systems.LayerObject)
		g.reserve(x, y)
		g.town.Landmarks.HidingSpots = append(g.town.Landmarks.HidingSpots, components.Cell{X: x, Y: y})
		placed++
	}
}

// field turns a lot into an outdoor workplace for one job.
func (g *generator) field(l lot, job components.SubRole) {
	floor := systems.TileDirt
	switch job {
	case components.SubRoleMiner:
		floor = systems.TileStone
	case components.SubRoleFisher:
		floor = systems.TileGrass
	}

	x0, y0, x1, y1 := l.x+1, l.y+1, l.x+l.w-1, l.y+l.h-1
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			g.reserve(x, y)
			g.grid.SetTile(x, y, 0, floor, 0, systems.LayerFloor)
		}
	}

	lm := &g.town.Landmarks
	cx, cy := (x0+x1)/2, (y0+y1)/2
	switch job {
	case components.SubRoleFisher:
		// Pond in the middle; anglers stand on the bank.
		for y := cy - 1; y <= cy+1; y++ {
			for x := cx - 2; x <= cx+2; x++ {
				g.grid.SetTile(x, y, 0, systems.TileWater, 0, systems.LayerFloor)
			}
		}
		for x := cx - 2; x <= cx+2; x += 2 {
			lm.WorkSpots[job] = append(lm.WorkSpots[job], components.Cell{X: x, Y: cy - 2}, components.Cell{X: x, Y: cy + 2})
		}
	case components.SubRoleMiner:
		g.grid.SetTile(cx, cy, 0, systems.TileCrate, 0, systems.LayerObject)
		lm.HidingSpots = append(lm.HidingSpots, components.Cell{X: cx, Y: cy})
		for _, d := range [][2]int{{-2, 0}, {2, 0}, {0, -2}, {0, 2}} {
			lm.WorkSpots[job] = append(lm.WorkSpots[job], components.Cell{X: cx + d[0], Y: cy + d[1]})
		}
	default:
		for y := y0 + 1; y < y1-1; y += 2 {
			for x := x0 + 1; x < x1-1; x += 3 {
				lm.WorkSpots[job] = append(lm.WorkSpots[job], components.Cell{X: x, Y: y})
			}
		}
	}
}

// vegetation grows bushes where layered simplex noise peaks.
func (g *generator) vegetation(seed int64) {
	noise := opensimplex.NewNormalized(seed)
	scale := g.cfg.VegetationScale
	lm := &g.town.Landmarks
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			if !g.free(x, y) {
				continue
			}
			if octaveNoise(noise, float64(x), float64(y), 3, scale, 0.5) < g.cfg.BushThreshold {
				continue
			}
			g.grid.SetTile(x, y, 0, systems.TileBush, 0, systems.LayerObject)
			lm.HidingSpots = append(lm.HidingSpots, components.Cell{X: x, Y: y})
		}
	}
}

// patrols marks the crossing and the four road ends.
func (g *generator) patrols() {
	lm := &g.town.Landmarks
	lm.PatrolPoints = append(lm.PatrolPoints,
		components.Cell{X: g.roadX, Y: g.roadY},
		components.Cell{X: 2, Y: g.roadY},
		components.Cell{X: g.w - 3, Y: g.roadY},
		components.Cell{X: g.roadX, Y: 2},
		components.Cell{X: g.roadX, Y: g.h - 3},
	)
}

// spawns spreads start cells along the main road.
func (g *generator) spawns() {
	for x := 2; x < g.w-2; x += 3 {
		g.town.Landmarks.Spawns = append(g.town.Landmarks.Spawns, components.Cell{X: x, Y: g.roadY})
	}
}

// octaveNoise layers noise at doubling frequencies, normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
