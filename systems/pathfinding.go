package systems

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/duskfall/components"
)

// SearchFunc computes a path on a locked grid view.
type SearchFunc func(g GridView, start, goal components.Cell, maxExpansions int) SearchResult

// PathPlanner runs A* searches on short-lived worker goroutines and
// publishes results to per-agent mailboxes. Workers only read the grid
// and write the mailbox; they never touch agent state.
type PathPlanner struct {
	grid          *TileGrid
	maxExpansions int
	search        SearchFunc

	wg       sync.WaitGroup
	spawned  atomic.Int64
	failures atomic.Int64
}

// NewPathPlanner creates a planner over grid with a per-search expansion budget.
func NewPathPlanner(grid *TileGrid, maxExpansions int) *PathPlanner {
	return &PathPlanner{
		grid:          grid,
		maxExpansions: maxExpansions,
		search:        FindPath,
	}
}

// RequestPath starts a search from start to goal whose result lands in mb.
// Returns false without doing anything if mb already has a request in flight.
//
// Trivial requests resolve synchronously: start == goal yields an empty
// path, and a goal on another z-level or out of bounds yields a failure.
// Neither spawns a worker.
func (p *PathPlanner) RequestPath(mb *components.Mailbox, start, goal components.Cell) bool {
	gen, ok := mb.Begin()
	if !ok {
		return false
	}

	if start == goal {
		mb.Deliver(&components.PathResult{Generation: gen, Goal: goal})
		return true
	}
	if start.Z != goal.Z || !p.grid.InBounds(goal.X, goal.Y, goal.Z) {
		p.failures.Add(1)
		mb.Deliver(&components.PathResult{Generation: gen, Goal: goal, Failed: true})
		return true
	}

	p.spawned.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		began := time.Now()

		var res SearchResult
		p.grid.View(func(g GridView) {
			res = p.search(g, start, goal, p.maxExpansions)
		})

		if !res.Found {
			p.failures.Add(1)
			slog.Debug("path search failed",
				"start", start, "goal", goal, "expansions", res.Expansions)
		}
		mb.Deliver(&components.PathResult{
			Generation: gen,
			Goal:       goal,
			Waypoints:  res.Waypoints,
			Failed:     !res.Found,
			Expansions: res.Expansions,
			Elapsed:    time.Since(began),
		})
	}()
	return true
}

// Wait blocks until every spawned worker has delivered its result.
func (p *PathPlanner) Wait() {
	p.wg.Wait()
}

// Spawned returns the number of worker goroutines started.
func (p *PathPlanner) Spawned() int64 {
	return p.spawned.Load()
}

// Failures returns the number of searches that ended without a path.
func (p *PathPlanner) Failures() int64 {
	return p.failures.Load()
}
