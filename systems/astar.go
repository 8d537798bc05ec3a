package systems

import (
	"container/heap"
	"sync"

	"github.com/pthm-cable/duskfall/components"
)

// astarNode is a node in the A* open set.
type astarNode struct {
	id  int // y*width + x
	g   int // Steps from start
	f   int // g + h (priority)
	seq int // Insertion order, breaks f ties
}

// nodeHeap implements heap.Interface for the A* open set.
// Ties on f resolve by insertion order.
type nodeHeap []astarNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(astarNode))
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	*h = old[:n-1]
	return node
}

// searchScratch holds reusable search state (cleared between searches).
type searchScratch struct {
	open     nodeHeap
	closed   map[int]struct{}
	cameFrom map[int]int
	gScore   map[int]int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &searchScratch{
			closed:   make(map[int]struct{}, 256),
			cameFrom: make(map[int]int, 256),
			gScore:   make(map[int]int, 256),
		}
	},
}

func (s *searchScratch) reset() {
	s.open = s.open[:0]
	clear(s.closed)
	clear(s.cameFrom)
	clear(s.gScore)
}

// SearchResult is the outcome of one A* search.
type SearchResult struct {
	Waypoints  []components.Cell // Excludes start, ends at goal
	Found      bool
	Expansions int
}

// 4-connected neighbor offsets: W, E, N, S.
var neighborOffsets = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// FindPath runs A* from start to goal on one z-level of the view.
//
// Steps are 4-directional with uniform cost and a Manhattan heuristic.
// Door tiles in any state are passable, since agents deal with doors when
// they reach them. The goal cell is always passable so agents can plan onto
// a blocked objective. The search fails once maxExpansions nodes have been
// expanded without reaching the goal.
func FindPath(g GridView, start, goal components.Cell, maxExpansions int) SearchResult {
	if start.Z != goal.Z || !g.InBounds(goal.X, goal.Y, goal.Z) || !g.InBounds(start.X, start.Y, start.Z) {
		return SearchResult{}
	}
	if start == goal {
		return SearchResult{Found: true}
	}

	s := scratchPool.Get().(*searchScratch)
	defer scratchPool.Put(s)
	s.reset()

	w := g.Width()
	z := start.Z
	startID := start.Y*w + start.X
	goalID := goal.Y*w + goal.X

	passable := func(x, y int) bool {
		if x == goal.X && y == goal.Y {
			return true
		}
		if !g.InBounds(x, y, z) {
			return false
		}
		return !g.Blocked(x, y, z) || g.IsDoor(x, y, z)
	}

	seq := 0
	s.gScore[startID] = 0
	heap.Push(&s.open, astarNode{id: startID, g: 0, f: manhattan(start.X, start.Y, goal.X, goal.Y), seq: seq})

	expansions := 0
	for s.open.Len() > 0 {
		current := heap.Pop(&s.open).(astarNode)
		if _, done := s.closed[current.id]; done {
			continue
		}
		if current.id == goalID {
			return SearchResult{
				Waypoints:  s.reconstruct(w, z, startID, goalID),
				Found:      true,
				Expansions: expansions,
			}
		}
		if expansions >= maxExpansions {
			return SearchResult{Expansions: expansions}
		}
		expansions++
		s.closed[current.id] = struct{}{}

		cx, cy := current.id%w, current.id/w
		for _, off := range neighborOffsets {
			nx, ny := cx+off[0], cy+off[1]
			if !passable(nx, ny) {
				continue
			}
			nid := ny*w + nx
			if _, done := s.closed[nid]; done {
				continue
			}

			tentativeG := current.g + 1
			if existing, ok := s.gScore[nid]; ok && tentativeG >= existing {
				continue
			}
			s.cameFrom[nid] = current.id
			s.gScore[nid] = tentativeG
			seq++
			heap.Push(&s.open, astarNode{
				id:  nid,
				g:   tentativeG,
				f:   tentativeG + manhattan(nx, ny, goal.X, goal.Y),
				seq: seq,
			})
		}
	}

	// Open set exhausted: goal unreachable
	return SearchResult{Expansions: expansions}
}

// reconstruct builds the waypoint list from cameFrom, excluding the start cell.
func (s *searchScratch) reconstruct(w, z, startID, goalID int) []components.Cell {
	n := 0
	for id := goalID; id != startID; id = s.cameFrom[id] {
		n++
	}
	path := make([]components.Cell, n)
	for id, i := goalID, n-1; id != startID; id, i = s.cameFrom[id], i-1 {
		path[i] = components.Cell{X: id % w, Y: id / w, Z: z}
	}
	return path
}

func manhattan(x1, y1, x2, y2 int) int {
	return abs(x2-x1) + abs(y2-y1)
}
