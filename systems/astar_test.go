package systems

import (
	"testing"

	"github.com/pthm-cable/duskfall/components"
)

func findPath(g *TileGrid, start, goal components.Cell, budget int) SearchResult {
	var res SearchResult
	g.View(func(v GridView) {
		res = FindPath(v, start, goal, budget)
	})
	return res
}

// assertContiguous checks each waypoint is one 4-connected step from the previous.
func assertContiguous(t *testing.T, start components.Cell, path []components.Cell) {
	t.Helper()
	prev := start
	for i, c := range path {
		if abs(c.X-prev.X)+abs(c.Y-prev.Y) != 1 || c.Z != prev.Z {
			t.Fatalf("waypoint %d %v is not adjacent to %v", i, c, prev)
		}
		prev = c
	}
}

// TestAStarStraightPath verifies an open grid yields a shortest Manhattan path.
func TestAStarStraightPath(t *testing.T) {
	g := NewTileGrid(20, 20, 1, 32)
	start := components.Cell{X: 1, Y: 1}
	goal := components.Cell{X: 6, Y: 4}

	res := findPath(g, start, goal, 4000)
	if !res.Found {
		t.Fatal("expected path")
	}
	if len(res.Waypoints) != 8 {
		t.Errorf("expected 8 waypoints, got %d", len(res.Waypoints))
	}
	if res.Waypoints[len(res.Waypoints)-1] != goal {
		t.Errorf("last waypoint %v, want goal %v", res.Waypoints[len(res.Waypoints)-1], goal)
	}
	assertContiguous(t, start, res.Waypoints)
}

// TestAStarAroundObstacle verifies the path routes around a wall and never enters it.
func TestAStarAroundObstacle(t *testing.T) {
	g := NewTileGrid(20, 20, 1, 32)
	for y := 0; y < 15; y++ {
		g.SetTile(10, y, 0, TileWallBrick, 0, LayerWall)
	}
	start := components.Cell{X: 5, Y: 5}
	goal := components.Cell{X: 15, Y: 5}

	res := findPath(g, start, goal, 4000)
	if !res.Found {
		t.Fatal("expected path around wall")
	}
	for i, c := range res.Waypoints {
		if g.CheckCollision(c.X, c.Y, c.Z) {
			t.Errorf("waypoint %d %v is inside a wall", i, c)
		}
	}
	assertContiguous(t, start, res.Waypoints)
}

// TestAStarSealedWall verifies a fully separating wall yields failure within budget.
func TestAStarSealedWall(t *testing.T) {
	g := NewTileGrid(11, 11, 1, 32)
	// Anti-diagonal wall: every 4-connected route from (0,0) to (10,10) crosses x+y=10
	for x := 0; x < 11; x++ {
		g.SetTile(x, 10-x, 0, TileWallBrick, 0, LayerWall)
	}

	const budget = 4000
	res := findPath(g, components.Cell{}, components.Cell{X: 10, Y: 10}, budget)
	if res.Found {
		t.Fatalf("expected failure, got path %v", res.Waypoints)
	}
	if res.Expansions > budget {
		t.Errorf("expansions %d exceeded budget %d", res.Expansions, budget)
	}
}

// TestAStarBudgetExceeded verifies the search gives up after the expansion budget.
func TestAStarBudgetExceeded(t *testing.T) {
	g := NewTileGrid(60, 60, 1, 32)
	res := findPath(g, components.Cell{}, components.Cell{X: 59, Y: 59}, 10)
	if res.Found {
		t.Fatal("expected the tiny budget to be exhausted")
	}
	if res.Expansions != 10 {
		t.Errorf("expected 10 expansions, got %d", res.Expansions)
	}
}

// TestAStarDoorsPassable verifies doors in any state are planned through.
func TestAStarDoorsPassable(t *testing.T) {
	for _, door := range []TileID{TileDoorClosed, TileDoorLocked} {
		t.Run(door.String(), func(t *testing.T) {
			g := NewTileGrid(10, 5, 1, 32)
			for y := 0; y < 5; y++ {
				g.SetTile(5, y, 0, TileWallBrick, 0, LayerWall)
			}
			g.SetTile(5, 2, 0, door, 0, LayerWall)

			res := findPath(g, components.Cell{X: 1, Y: 2}, components.Cell{X: 8, Y: 2}, 4000)
			if !res.Found {
				t.Fatal("expected path through door")
			}
			through := false
			for _, c := range res.Waypoints {
				if c.X == 5 && c.Y == 2 {
					through = true
				}
			}
			if !through {
				t.Error("path should cross the door cell")
			}
		})
	}
}

// TestAStarGoalForcedPassable verifies a blocked goal cell can still be reached.
func TestAStarGoalForcedPassable(t *testing.T) {
	g := NewTileGrid(10, 10, 1, 32)
	goal := components.Cell{X: 5, Y: 5}
	g.SetTile(goal.X, goal.Y, 0, TileCounter, 0, LayerObject)

	res := findPath(g, components.Cell{X: 1, Y: 5}, goal, 4000)
	if !res.Found {
		t.Fatal("expected path onto the blocked goal")
	}
	if res.Waypoints[len(res.Waypoints)-1] != goal {
		t.Error("path should end on the goal")
	}
}

// TestAStarInvalidGoals verifies out-of-bounds and cross-level goals fail.
func TestAStarInvalidGoals(t *testing.T) {
	g := NewTileGrid(10, 10, 2, 32)
	tests := []struct {
		name string
		goal components.Cell
	}{
		{"out of bounds", components.Cell{X: 12, Y: 3}},
		{"negative", components.Cell{X: -1, Y: 3}},
		{"other level", components.Cell{X: 3, Y: 3, Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := findPath(g, components.Cell{X: 1, Y: 1}, tt.goal, 4000); res.Found {
				t.Errorf("expected failure for goal %v", tt.goal)
			}
		})
	}
}

// TestAStarDeterministic verifies repeated searches return identical paths.
func TestAStarDeterministic(t *testing.T) {
	g := NewTileGrid(30, 30, 1, 32)
	for y := 5; y < 25; y++ {
		g.SetTile(15, y, 0, TileWallBrick, 0, LayerWall)
	}
	start := components.Cell{X: 2, Y: 15}
	goal := components.Cell{X: 28, Y: 15}

	first := findPath(g, start, goal, 4000)
	for i := 0; i < 5; i++ {
		again := findPath(g, start, goal, 4000)
		if len(again.Waypoints) != len(first.Waypoints) {
			t.Fatalf("run %d: length %d != %d", i, len(again.Waypoints), len(first.Waypoints))
		}
		for j := range again.Waypoints {
			if again.Waypoints[j] != first.Waypoints[j] {
				t.Fatalf("run %d: waypoint %d differs", i, j)
			}
		}
	}
}
