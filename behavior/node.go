// Package behavior implements the NPC decision layer: composable behavior
// tree nodes, the per-tick blackboard they read, and the role trees.
package behavior

// Status is the outcome of ticking a node.
type Status uint8

const (
	StatusFailure Status = iota
	StatusSuccess
	StatusRunning
	StatusCommand // Out-of-band command for the simulation; see Result.Command
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusFailure:
		return "failure"
	case StatusSuccess:
		return "success"
	case StatusRunning:
		return "running"
	case StatusCommand:
		return "command"
	}
	return "unknown"
}

// Command is a high-level effect the simulation applies after the agent updates.
type Command string

const (
	CmdTriggerSiren   Command = "trigger_siren"
	CmdSabotageLights Command = "sabotage_lights"
)

// Result is what a node returns.
type Result struct {
	Status  Status
	Command Command // Set only when Status is StatusCommand
}

var (
	Success = Result{Status: StatusSuccess}
	Failure = Result{Status: StatusFailure}
	Running = Result{Status: StatusRunning}
)

// Issue returns a result carrying cmd.
func Issue(cmd Command) Result {
	return Result{Status: StatusCommand, Command: cmd}
}

// Node is a behavior tree node. Nodes hold no per-agent state; everything
// they read or write lives on the agent or the blackboard.
type Node interface {
	Name() string
	Tick(ctx *Context) Result
}

// Selector ticks children in order and returns the first non-failure result.
type Selector struct {
	name     string
	children []Node
}

// NewSelector creates a selector.
func NewSelector(name string, children ...Node) *Selector {
	return &Selector{name: name, children: children}
}

func (s *Selector) Name() string { return s.name }

func (s *Selector) Tick(ctx *Context) Result {
	for _, c := range s.children {
		if r := c.Tick(ctx); r.Status != StatusFailure {
			ctx.trace(c)
			return r
		}
	}
	return Failure
}

// Sequence ticks children in order. It fails on the first failing child and
// otherwise returns the last child's result. A command stops the sequence
// early so it is never swallowed by a later child.
type Sequence struct {
	name     string
	children []Node
}

// NewSequence creates a sequence.
func NewSequence(name string, children ...Node) *Sequence {
	return &Sequence{name: name, children: children}
}

func (s *Sequence) Name() string { return s.name }

func (s *Sequence) Tick(ctx *Context) Result {
	last := Success
	for _, c := range s.children {
		last = c.Tick(ctx)
		if last.Status == StatusFailure || last.Status == StatusCommand {
			return last
		}
	}
	return last
}

// Condition is a predicate node. It never returns Running.
type Condition struct {
	name string
	fn   func(ctx *Context) bool
}

// NewCondition creates a condition.
func NewCondition(name string, fn func(ctx *Context) bool) *Condition {
	return &Condition{name: name, fn: fn}
}

func (c *Condition) Name() string { return c.name }

func (c *Condition) Tick(ctx *Context) Result {
	if c.fn(ctx) {
		return Success
	}
	return Failure
}

// Action is a node that mutates agent state or issues movement.
type Action struct {
	name string
	fn   func(ctx *Context) Result
}

// NewAction creates an action.
func NewAction(name string, fn func(ctx *Context) Result) *Action {
	return &Action{name: name, fn: fn}
}

func (a *Action) Name() string { return a.name }

func (a *Action) Tick(ctx *Context) Result {
	return a.fn(ctx)
}
