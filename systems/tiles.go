package systems

// TileID identifies a tile type. Zero is the empty tile.
type TileID uint16

const (
	TileEmpty TileID = iota

	// Floors
	TileGrass
	TileDirt
	TileStone
	TileWood
	TileWater

	// Walls
	TileWallBrick
	TileWallWood
	TileGlass
	TileGlassTinted
	TileGlassFrame

	// Doors
	TileDoorClosed
	TileDoorOpen
	TileDoorLocked
	TileDoorBroken

	// Objects
	TileBed
	TileBush
	TileCrate
	TileTable
	TileCounter
	TileFence

	NumTileIDs
)

// Layer selects a tile grid layer.
type Layer uint8

const (
	LayerFloor Layer = iota
	LayerWall
	LayerObject
	NumLayers
)

// DoorState is the state of a door tile.
type DoorState uint8

const (
	DoorNone DoorState = iota
	DoorClosed
	DoorOpen
	DoorLocked
	DoorBroken
)

// TileDef describes the static properties of a tile type.
type TileDef struct {
	Name        string
	Collidable  bool
	Transparent bool      // Sight passes through despite Collidable (glass)
	Hideable    bool      // Agents can hide in it; never blocks sight
	Walkable    bool      // Collidable but movement passes (explicit exception)
	Door        DoorState // DoorNone for non-door tiles
	Hiding      uint8     // Hiding strength granted (0 none, 1 passive, 2 active)
}

var tileDefs = [NumTileIDs]TileDef{
	TileEmpty: {Name: "empty"},

	TileGrass: {Name: "grass"},
	TileDirt:  {Name: "dirt"},
	TileStone: {Name: "stone"},
	TileWood:  {Name: "wood"},
	TileWater: {Name: "water"},

	TileWallBrick:   {Name: "wall_brick", Collidable: true},
	TileWallWood:    {Name: "wall_wood", Collidable: true},
	TileGlass:       {Name: "glass", Collidable: true, Transparent: true},
	TileGlassTinted: {Name: "glass_tinted", Collidable: true, Transparent: true},
	TileGlassFrame:  {Name: "glass_frame", Collidable: true, Transparent: true},

	TileDoorClosed: {Name: "door_closed", Collidable: true, Door: DoorClosed},
	TileDoorOpen:   {Name: "door_open", Door: DoorOpen},
	TileDoorLocked: {Name: "door_locked", Collidable: true, Door: DoorLocked},
	TileDoorBroken: {Name: "door_broken", Collidable: true, Walkable: true, Door: DoorBroken},

	TileBed:     {Name: "bed", Collidable: true, Hideable: true, Walkable: true, Hiding: 2},
	TileBush:    {Name: "bush", Collidable: true, Hideable: true, Walkable: true, Hiding: 1},
	TileCrate:   {Name: "crate", Collidable: true, Hideable: true, Walkable: true, Hiding: 1},
	TileTable:   {Name: "table", Collidable: true},
	TileCounter: {Name: "counter", Collidable: true},
	TileFence:   {Name: "fence", Collidable: true, Transparent: true},
}

// Def returns the static definition of a tile. Unknown ids resolve to the empty tile.
func (id TileID) Def() TileDef {
	if int(id) >= len(tileDefs) {
		return tileDefs[TileEmpty]
	}
	return tileDefs[id]
}

// String returns the tile's name.
func (id TileID) String() string {
	return id.Def().Name
}

// BlocksMovement reports whether the tile stops movement.
func (id TileID) BlocksMovement() bool {
	d := id.Def()
	return d.Collidable && !d.Walkable
}

// BlocksSight reports whether the tile stops a sight line.
func (id TileID) BlocksSight() bool {
	d := id.Def()
	return d.Collidable && !d.Transparent && !d.Hideable
}

// IsGlass reports whether the tile is on the transparent allow-list.
func (id TileID) IsGlass() bool {
	return id.Def().Transparent
}

// IsDoor reports whether the tile is a door in any state.
func (id TileID) IsDoor() bool {
	return id.Def().Door != DoorNone
}
