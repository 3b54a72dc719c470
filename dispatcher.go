package pen

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Dispatcher runs chunked batch work on a fixed pool of worker goroutines.
// Schedule never blocks; Join is the only blocking call and must be made from
// the orchestrating goroutine, never from inside a job.
type Dispatcher struct {
	workers   int
	chunkSize int
	queue     *mutationQueue

	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []job
	head    int
	nextSeq uint64
	closed  bool
	done    sync.WaitGroup
}

type job struct {
	chunk Chunk
	fn    func(Chunk)
	c     *completion
}

type completion struct {
	wg    sync.WaitGroup
	mu    sync.Mutex
	fault *JobPanic
}

func (c *completion) fail(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault == nil {
		c.fault = &JobPanic{Value: v, Stack: debug.Stack()}
	}
}

// JobPanic is re-raised by Join when a scheduled job panicked.
type JobPanic struct {
	Value any
	Stack []byte
}

func (p *JobPanic) Error() string {
	return fmt.Sprintf("scheduled job panicked: %v\n%s", p.Value, p.Stack)
}

// JobHandle is the completion token of one or more scheduled jobs. The zero
// value is already complete.
type JobHandle struct {
	completions []*completion
}

func newDispatcher(workers, chunkSize int, queue *mutationQueue) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	d := &Dispatcher{
		workers:   workers,
		chunkSize: chunkSize,
		queue:     queue,
	}
	d.cond = sync.NewCond(&d.mu)
	d.done.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work(i)
	}
	return d
}

func (d *Dispatcher) Workers() int {
	return d.workers
}

func (d *Dispatcher) ChunkSize() int {
	return d.chunkSize
}

// Schedule splits every batch into chunks and runs fn over each chunk.
func (d *Dispatcher) Schedule(batches []Batch, fn func(Chunk)) JobHandle {
	c := &completion{}
	var chunks []Chunk
	for _, b := range batches {
		chunks = d.split(chunks, b, b.Len())
	}
	d.submit(c, chunks, fn)
	return JobHandle{completions: []*completion{c}}
}

// ScheduleRange runs fn over rows [0, n) of b.
func (d *Dispatcher) ScheduleRange(b Batch, n int, fn func(Chunk)) JobHandle {
	if n > b.Len() {
		panic(fmt.Sprintf("pen: range %d exceeds batch length %d", n, b.Len()))
	}
	c := &completion{}
	d.submit(c, d.split(nil, b, n), fn)
	return JobHandle{completions: []*completion{c}}
}

// ScheduleN runs fn over the index range [0, n) with no batch attached.
func (d *Dispatcher) ScheduleN(n int, fn func(Chunk)) JobHandle {
	c := &completion{}
	d.submit(c, d.split(nil, Batch{}, n), fn)
	return JobHandle{completions: []*completion{c}}
}

func (d *Dispatcher) split(chunks []Chunk, b Batch, n int) []Chunk {
	for start := 0; start < n; start += d.chunkSize {
		end := min(start+d.chunkSize, n)
		chunks = append(chunks, Chunk{Batch: b, Start: start, End: end, queue: d.queue})
	}
	return chunks
}

func (d *Dispatcher) submit(c *completion, chunks []Chunk, fn func(Chunk)) {
	if len(chunks) == 0 {
		return
	}
	c.wg.Add(len(chunks))

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		panic("pen: schedule on closed dispatcher")
	}
	for _, ch := range chunks {
		ch.seq = d.nextSeq
		d.nextSeq++
		d.jobs = append(d.jobs, job{chunk: ch, fn: fn, c: c})
	}
	d.mu.Unlock()
	d.cond.Broadcast()
}

func (d *Dispatcher) work(id int) {
	defer d.done.Done()
	for {
		d.mu.Lock()
		for d.head == len(d.jobs) && !d.closed {
			d.cond.Wait()
		}
		if d.head == len(d.jobs) {
			d.mu.Unlock()
			return
		}
		j := d.jobs[d.head]
		d.jobs[d.head] = job{}
		d.head++
		if d.head == len(d.jobs) {
			d.jobs = d.jobs[:0]
			d.head = 0
		}
		d.mu.Unlock()

		d.run(id, j)
	}
}

func (d *Dispatcher) run(id int, j job) {
	defer j.c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			j.c.fail(r)
		}
	}()
	ch := j.chunk
	ch.Worker = id
	j.fn(ch)
}

// Join blocks until every job behind the handles has finished. If any job
// panicked, Join panics with the first *JobPanic.
func (d *Dispatcher) Join(handles ...JobHandle) {
	var fault *JobPanic
	for _, h := range handles {
		for _, c := range h.completions {
			c.wg.Wait()
			c.mu.Lock()
			if fault == nil && c.fault != nil {
				fault = c.fault
			}
			c.mu.Unlock()
		}
	}
	if fault != nil {
		panic(fault)
	}
}

// Combine merges handles into one token.
func Combine(handles ...JobHandle) JobHandle {
	var combined JobHandle
	for _, h := range handles {
		combined.completions = append(combined.completions, h.completions...)
	}
	return combined
}

// Close lets queued jobs finish and stops the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
	d.done.Wait()
}
