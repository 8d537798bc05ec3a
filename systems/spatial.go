// Package systems provides the world services the simulation is built on:
// tile storage, collision, sight, proximity, noise, and path planning.
package systems

import (
	"github.com/pthm-cable/duskfall/components"
)

// cellKey addresses one spatial index cell.
type cellKey struct {
	cx, cy int
}

// SpatialIndex provides neighbor lookups using a uniform grid of cells.
// Membership only changes through Add, Remove, and Update; callers update
// agents explicitly after moving them.
type SpatialIndex struct {
	cellSize float32
	cells    map[cellKey]map[components.AgentID]struct{}
	members  map[components.AgentID]cellKey
}

// NewSpatialIndex creates an empty index with the given cell edge in world units.
func NewSpatialIndex(cellSize float32) *SpatialIndex {
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[components.AgentID]struct{}),
		members:  make(map[components.AgentID]cellKey),
	}
}

// Add inserts an agent at a world position. Adding a present agent moves it.
func (s *SpatialIndex) Add(id components.AgentID, x, y float32) {
	if _, ok := s.members[id]; ok {
		s.Update(id, x, y)
		return
	}
	k := s.key(x, y)
	s.insert(id, k)
}

// Remove deletes an agent from the index.
func (s *SpatialIndex) Remove(id components.AgentID) {
	k, ok := s.members[id]
	if !ok {
		return
	}
	s.erase(id, k)
	delete(s.members, id)
}

// Update recomputes an agent's cell and moves it if the cell changed.
func (s *SpatialIndex) Update(id components.AgentID, x, y float32) {
	old, ok := s.members[id]
	if !ok {
		return
	}
	k := s.key(x, y)
	if k == old {
		return
	}
	s.erase(id, old)
	s.insert(id, k)
}

// Contains reports whether an agent is indexed.
func (s *SpatialIndex) Contains(id components.AgentID) bool {
	_, ok := s.members[id]
	return ok
}

// Len returns the number of indexed agents.
func (s *SpatialIndex) Len() int {
	return len(s.members)
}

// QueryNearby returns the agents in the block of cells covering radius around
// the given agent, excluding the agent itself. The block has a one-cell margin,
// so results can include agents beyond radius; callers filter by exact distance.
// An agent that was never added gets an empty set.
func (s *SpatialIndex) QueryNearby(id components.AgentID, radius float32) map[components.AgentID]struct{} {
	out := make(map[components.AgentID]struct{})
	center, ok := s.members[id]
	if !ok {
		return out
	}

	cellRadius := int(radius/s.cellSize) + 1
	for dx := -cellRadius; dx <= cellRadius; dx++ {
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			for other := range s.cells[cellKey{center.cx + dx, center.cy + dy}] {
				out[other] = struct{}{}
			}
		}
	}
	delete(out, id)
	return out
}

func (s *SpatialIndex) key(x, y float32) cellKey {
	return cellKey{floorDiv(x, s.cellSize), floorDiv(y, s.cellSize)}
}

func (s *SpatialIndex) insert(id components.AgentID, k cellKey) {
	set := s.cells[k]
	if set == nil {
		set = make(map[components.AgentID]struct{})
		s.cells[k] = set
	}
	set[id] = struct{}{}
	s.members[id] = k
}

func (s *SpatialIndex) erase(id components.AgentID, k cellKey) {
	set := s.cells[k]
	delete(set, id)
	if len(set) == 0 {
		delete(s.cells, k)
	}
}
