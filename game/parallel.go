package game

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/duskfall/behavior"
	"github.com/pthm-cable/duskfall/components"
)

// parallelThreshold is the minimum number of due agents to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// perceptionJob is one agent whose tree evaluates this tick.
type perceptionJob struct {
	agent components.Agent
	out   *behavior.Perception
}

// workChunk represents a range of jobs for a worker to process.
type workChunk struct {
	start, end int
	board      *behavior.Blackboard
}

// perceptionPool computes perceptions ahead of the sequential agent pass.
// Perception only reads the blackboard and the observer's own components,
// so workers share nothing mutable.
type perceptionPool struct {
	jobs       []perceptionJob
	numWorkers int

	// Worker pool channels
	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newPerceptionPool() *perceptionPool {
	return &perceptionPool{
		numWorkers: runtime.GOMAXPROCS(0),
		jobs:       make([]perceptionJob, 0, 128),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *perceptionPool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *perceptionPool) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *perceptionPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.computeChunk(chunk.start, chunk.end, chunk.board)
			p.doneChan <- struct{}{}
		}
	}
}

func (p *perceptionPool) computeChunk(i0, i1 int, board *behavior.Blackboard) {
	for i := i0; i < i1; i++ {
		p.jobs[i].out = behavior.Perceive(p.jobs[i].agent, board)
	}
}

// computeParallel dispatches the jobs to the worker pool and waits.
func (p *perceptionPool) computeParallel(board *behavior.Blackboard) {
	if !p.running {
		p.startWorkers()
	}

	n := len(p.jobs)
	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, board: board}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// precomputePerception perceives for every agent due to evaluate this tick
// when there are enough of them to be worth spreading across cores. The
// result is keyed by agent; a missing entry means perceive on demand.
func (s *Simulation) precomputePerception() map[components.AgentID]*behavior.Perception {
	if s.frozen {
		return nil
	}
	p := s.parallel
	p.jobs = p.jobs[:0]

	for _, id := range s.order {
		c := s.controllers[id]
		if c == nil || !c.due() {
			continue
		}
		a, ok := s.Agent(id)
		if !ok || !a.Vitals.Alive || !a.Identity.Master || a.Status.Lockpicking {
			continue
		}
		p.jobs = append(p.jobs, perceptionJob{agent: a})
	}

	if len(p.jobs) < parallelThreshold {
		return nil
	}
	p.computeParallel(s.board)

	out := make(map[components.AgentID]*behavior.Perception, len(p.jobs))
	for _, j := range p.jobs {
		out[j.agent.ID()] = j.out
	}
	return out
}
