package audit

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// Async decouples audit persistence from the decision path. Entries
// are queued and drained by a single background goroutine; a hot
// Decide loop can therefore never block on the sink. The drain rate is
// bounded so a burst of decisions cannot flood a slow backing store.
//
// Write never returns an error: queue overflow and downstream sink
// failures are logged and dropped, matching the engine's
// fire-and-forget audit contract.
type Async struct {
	sink    Sink
	queue   chan Entry
	limiter *rate.Limiter
	logger  *slog.Logger

	done chan struct{}
	once sync.Once
}

// AsyncConfig tunes the async writer.
type AsyncConfig struct {
	QueueSize     int     // pending entries before drops; default 1024
	WritesPerSec  float64 // drain rate; default 200
	BurstCapacity int     // limiter burst; default 50
}

// NewAsync wraps sink with a rate-limited background writer.
func NewAsync(sink Sink, cfg AsyncConfig) *Async {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WritesPerSec <= 0 {
		cfg.WritesPerSec = 200
	}
	if cfg.BurstCapacity <= 0 {
		cfg.BurstCapacity = 50
	}

	a := &Async{
		sink:    sink,
		queue:   make(chan Entry, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.WritesPerSec), cfg.BurstCapacity),
		logger:  slog.Default().With("component", "audit"),
		done:    make(chan struct{}),
	}
	go a.drain()
	return a
}

// Write enqueues the entry. Drops and logs when the queue is full.
func (a *Async) Write(ctx context.Context, e Entry) error {
	_ = ctx
	select {
	case a.queue <- e:
	default:
		a.logger.Warn("audit queue full, dropping entry",
			"agent_id", e.AgentID, "action", e.Action, "type", string(e.Type))
	}
	return nil
}

func (a *Async) drain() {
	defer close(a.done)
	ctx := context.Background()
	for e := range a.queue {
		if err := a.limiter.Wait(ctx); err != nil {
			return
		}
		if err := a.sink.Write(ctx, e); err != nil {
			a.logger.Error("audit write failed",
				"agent_id", e.AgentID, "action", e.Action, "error", err)
		}
	}
}

// Close stops accepting entries and waits for the queue to flush.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.queue)
		<-a.done
	})
}
