package pen

import "fmt"

type TickState int

const (
	TickIdle TickState = iota
	TickScheduled
	TickJoined
)

func (s TickState) String() string {
	switch s {
	case TickIdle:
		return "idle"
	case TickScheduled:
		return "scheduled"
	case TickJoined:
		return "joined"
	}
	return fmt.Sprintf("TickState(%d)", int(s))
}

// Tick is the dispatch handle of one simulation step. Work scheduled through
// it is joined by EndTick before the mutation queue is drained.
type Tick struct {
	sto     *storage
	state   TickState
	handles []JobHandle
}

func (t *Tick) State() TickState {
	return t.state
}

func (t *Tick) Storage() Storage {
	return t.sto
}

func (t *Tick) Schedule(batches []Batch, fn func(Chunk)) JobHandle {
	return t.track(t.sto.dispatcher.Schedule(batches, fn))
}

func (t *Tick) ScheduleRange(b Batch, n int, fn func(Chunk)) JobHandle {
	return t.track(t.sto.dispatcher.ScheduleRange(b, n, fn))
}

func (t *Tick) ScheduleN(n int, fn func(Chunk)) JobHandle {
	return t.track(t.sto.dispatcher.ScheduleN(n, fn))
}

// Join waits for the given handles mid-tick, so a later step can read what
// an earlier one wrote.
func (t *Tick) Join(handles ...JobHandle) {
	t.sto.dispatcher.Join(handles...)
	t.state = TickJoined
}

func (t *Tick) track(h JobHandle) JobHandle {
	t.handles = append(t.handles, h)
	t.state = TickScheduled
	return h
}

// BeginTick locks the storage for a parallel phase. Structural changes made
// while locked must go through the mutation queue.
func (sto *storage) BeginTick() *Tick {
	if !sto.locked.CompareAndSwap(false, true) {
		panic("pen: tick already in progress")
	}
	return &Tick{sto: sto}
}

// EndTick joins every job scheduled through t, drains the mutation queue
// exactly once and unlocks the storage. A returned error means the store
// invariants can no longer be trusted.
func (sto *storage) EndTick(t *Tick) (DrainStats, error) {
	if t == nil || t.sto != sto {
		panic("pen: tick does not belong to this storage")
	}
	defer sto.locked.Store(false)

	sto.dispatcher.Join(t.handles...)
	t.handles = nil
	t.state = TickJoined

	stats, err := sto.processMutationQueue()
	t.state = TickIdle
	return stats, err
}
