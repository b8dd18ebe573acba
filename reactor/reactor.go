// Package reactor implements a completion-based dispatch loop: a fixed pool
// of worker goroutines drains a shared channel of completed operations and
// hands each one to the connection that issued it. It stands in for the
// IOCP-style proactor the original server was built on (WSARecv/WSASend
// completions landing on whichever thread called GetQueuedCompletionStatus):
// here the "kernel" posting completions is just the goroutine each Conn
// spawns to perform its blocking syscall, and Post is the equivalent of
// PostQueuedCompletionStatus.
//
// The dispatch loop itself follows gaio's watcher loop (wait for a
// completion, drain one cached item, then dispatch) and muxado's reader/
// writer goroutine split (one logical operation per goroutine, no shared
// mutable state between them).
package reactor

import (
	"sync"

	"github.com/DKandrew/NirCamera/queue"
)

// OpKind tags what kind of asynchronous operation a completion event reports.
type OpKind int

const (
	OpAccept OpKind = iota
	OpRead
	OpSend
	OpReset
	// OpShutdown carries no connection; it tells exactly one worker to stop.
	OpShutdown
)

// Conn is the subset of a connection's behavior the pool needs in order to
// dispatch completions to it. A connection never calls back into itself
// directly; every transition happens because a worker invoked one of these.
type Conn interface {
	// OnComplete runs the state transition for a successful operation. cached
	// is the newest frame this worker has observed, or nil if this worker has
	// not observed any frame yet.
	OnComplete(cached []byte)
	// Reset runs the teardown transition for a failed operation.
	Reset(err error)
}

// Event is one completion: either an asynchronous operation finishing (with
// or without error) or a shutdown instruction for the worker that receives
// it.
type Event struct {
	Conn Conn
	Op   OpKind
	N    int
	Err  error
}

// Pool runs a fixed number of worker goroutines, each holding its own
// LatestQueue of outgoing frames so publishing a new frame never contends
// across workers.
type Pool struct {
	events  chan Event
	stopped chan struct{}
	workers int
	queues  []*queue.LatestQueue[[]byte]
	wg      sync.WaitGroup
}

// New builds a Pool with the given worker count (clamped to at least 1) and
// per-worker frame queue capacity/tolerance. frameTolerance is forwarded to
// every per-worker queue via SetTolerance.
func New(workers, frameQueueCapacity int, frameTolerance uint64) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		events:  make(chan Event, workers*4),
		stopped: make(chan struct{}),
		workers: workers,
		queues:  make([]*queue.LatestQueue[[]byte], workers),
	}
	for i := range p.queues {
		q := queue.New[[]byte](frameQueueCapacity, nil)
		q.SetTolerance(frameTolerance)
		p.queues[i] = q
	}
	return p
}

// Start launches the worker goroutines. It must be called at most once.
func (p *Pool) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.workerLoop(i)
	}
}

// Post submits a completion event for dispatch. It may be called from any
// goroutine, including the goroutines a Conn spawns to perform blocking I/O.
// A Post racing with Shutdown is dropped rather than blocked on: once the
// pool is stopping, there are no workers left to dispatch it, and the
// in-flight accept/read/send goroutine that raced the shutdown will exit on
// its own once its underlying socket is closed.
func (p *Pool) Post(ev Event) {
	select {
	case p.events <- ev:
	case <-p.stopped:
	}
}

// Publish fans a newly available frame out to every worker's per-worker
// queue, so whichever worker next drains a connection's send path picks up
// the newest frame regardless of which worker happens to service it.
func (p *Pool) Publish(frame []byte) {
	for _, q := range p.queues {
		cp := make([]byte, len(frame))
		copy(cp, frame)
		q.Push(cp)
	}
}

// Shutdown posts exactly one OpShutdown per worker and waits for all workers
// to exit. Completions posted ahead of the shutdown events are dispatched
// normally; a completion posted after them is not dispatched and the owning
// connection's Reset is not called for it (see Post). Shutdown does not
// cancel operations already submitted.
func (p *Pool) Shutdown() {
	for i := 0; i < p.workers; i++ {
		p.events <- Event{Op: OpShutdown}
	}
	p.wg.Wait()
	close(p.stopped)
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()

	q := p.queues[id]
	var cached []byte

	for ev := range p.events {
		if newer := q.Pop([]byte(nil)); newer != nil {
			cached = newer
		}

		if ev.Op == OpShutdown {
			return
		}

		if ev.Err != nil {
			ev.Conn.Reset(ev.Err)
			continue
		}

		ev.Conn.OnComplete(cached)
	}
}
