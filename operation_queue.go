package pen

import (
	"fmt"
	"sync"
)

type operationType int

const (
	opCreate operationType = iota
	opMove
	opRemove
)

func (t operationType) String() string {
	switch t {
	case opCreate:
		return "create"
	case opMove:
		return "move"
	case opRemove:
		return "remove"
	}
	return "unknown"
}

// sharedLane is the lane used by callers that are not dispatcher workers.
const sharedLane = -1

type mutation struct {
	seq    uint64 // submission order of the chunk that queued it
	typ    operationType
	handle Handle
	dest   Category
	values []Value
}

// lane is an append-only log owned by exactly one worker, so appends need no
// synchronisation.
type lane struct {
	ops []mutation
	_   [40]byte
}

// DrainStats counts the mutations applied by one drain.
type DrainStats struct {
	Created int
	Moved   int
	Removed int
}

func (s DrainStats) Total() int {
	return s.Created + s.Moved + s.Removed
}

type mutationQueue struct {
	sharedMu sync.Mutex
	shared   lane
	lanes    []lane
	consumed map[Handle]struct{}
}

func newMutationQueue(workers int) *mutationQueue {
	return &mutationQueue{
		lanes:    make([]lane, workers),
		consumed: make(map[Handle]struct{}),
	}
}

func (q *mutationQueue) enqueue(worker int, m mutation) {
	if worker == sharedLane {
		q.sharedMu.Lock()
		q.shared.ops = append(q.shared.ops, m)
		q.sharedMu.Unlock()
		return
	}
	q.lanes[worker].ops = append(q.lanes[worker].ops, m)
}

// pending counts queued mutations. Only meaningful once workers are joined.
func (q *mutationQueue) pending() int {
	q.sharedMu.Lock()
	n := len(q.shared.ops)
	q.sharedMu.Unlock()
	for i := range q.lanes {
		n += len(q.lanes[i].ops)
	}
	return n
}

// each visits every queued mutation: the shared lane first, then worker
// mutations ordered by the submission sequence of their chunk, so the result
// does not depend on which worker ran which chunk. Workers take chunks in
// FIFO order, so every lane is already sorted by sequence.
func (q *mutationQueue) each(fn func(m mutation) error) error {
	for _, m := range q.shared.ops {
		if err := fn(m); err != nil {
			return err
		}
	}

	heads := make([]int, len(q.lanes))
	for {
		next := -1
		for i := range q.lanes {
			if heads[i] == len(q.lanes[i].ops) {
				continue
			}
			if next < 0 || q.lanes[i].ops[heads[i]].seq < q.lanes[next].ops[heads[next]].seq {
				next = i
			}
		}
		if next < 0 {
			return nil
		}
		ops := q.lanes[next].ops
		seq := ops[heads[next]].seq
		for ; heads[next] < len(ops) && ops[heads[next]].seq == seq; heads[next]++ {
			if err := fn(ops[heads[next]]); err != nil {
				return err
			}
		}
	}
}

func (q *mutationQueue) reset() {
	clear(q.shared.ops)
	q.shared.ops = q.shared.ops[:0]
	for i := range q.lanes {
		clear(q.lanes[i].ops)
		q.lanes[i].ops = q.lanes[i].ops[:0]
	}
	clear(q.consumed)
}

// processMutationQueue applies every queued mutation exactly once. It must
// run on a single goroutine after all workers have been joined.
func (s *storage) processMutationQueue() (DrainStats, error) {
	var stats DrainStats
	q := s.queue

	q.sharedMu.Lock()
	defer q.sharedMu.Unlock()
	defer q.reset()

	err := q.each(func(m mutation) error {
		switch m.typ {
		case opCreate:
			g, err := s.group(m.dest)
			if err != nil {
				return fmt.Errorf("failed to process queued entity creation: %w", err)
			}
			if _, err := s.create(g, m.values); err != nil {
				return fmt.Errorf("failed to process queued entity creation: %w", err)
			}
			stats.Created++

		case opMove, opRemove:
			if _, done := q.consumed[m.handle]; done {
				return DuplicateMutationError{Handle: m.handle, Op: m.typ.String()}
			}
			var err error
			if m.typ == opMove {
				err = s.move(m.handle, m.dest)
			} else {
				err = s.remove(m.handle)
			}
			if err != nil {
				return fmt.Errorf("failed to process queued %s: %w", m.typ, err)
			}
			q.consumed[m.handle] = struct{}{}
			if m.typ == opMove {
				stats.Moved++
			} else {
				stats.Removed++
			}
		}
		return nil
	})
	return stats, err
}

// EnqueueCreate queues an entity creation on the chunk's worker lane.
func (c Chunk) EnqueueCreate(cat Category, values ...Value) {
	c.queue.enqueue(c.Worker, mutation{seq: c.seq, typ: opCreate, dest: cat, values: values})
}

func (c Chunk) EnqueueMove(h Handle, dest Category) {
	c.queue.enqueue(c.Worker, mutation{seq: c.seq, typ: opMove, handle: h, dest: dest})
}

func (c Chunk) EnqueueRemove(h Handle) {
	c.queue.enqueue(c.Worker, mutation{seq: c.seq, typ: opRemove, handle: h})
}
