package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/ports"
	"github.com/codepilot/assistant-api/internal/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	applyTimeout   = 5 * time.Second
)

// Dispatcher applies usage increments off the request path. Deltas for the
// same user always land on the same worker, so they are applied in order.
type Dispatcher struct {
	workers []chan ports.UsageDelta
	repo    ports.UsageRepository
	log     zerolog.Logger

	// mu orders Record sends against shutdown: once stopped is set no
	// delta reaches a channel, so the final drain sees everything.
	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.UsageRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.UsageDelta, numWorkers),
		repo:    repo,
		log:     log,
		done:    make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.UsageDelta, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain what is already queued
// and stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.done)
	}()
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Record queues a delta for its user's worker. A full queue drops the delta:
// usage counters are advisory and must never block a request.
func (d *Dispatcher) Record(delta ports.UsageDelta) {
	if delta.UserID == "" {
		return
	}
	if delta.At.IsZero() {
		delta.At = time.Now().UTC()
	}
	idx := d.shardIndex(delta.UserID)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.UsageErrorsTotal.Inc()
		d.log.Warn().Str("user_id", delta.UserID).Msg("usage dispatcher stopped, delta dropped")
		return
	}
	select {
	case d.workers[idx] <- delta:
		metrics.UsageQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.UsageErrorsTotal.Inc()
		d.log.Warn().Str("user_id", delta.UserID).Int("worker_id", idx).Msg("usage queue full, delta dropped")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.UsageDelta) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-d.done:
			d.drain(id, label, ch)
			return
		case delta := <-ch:
			metrics.UsageQueueDepth.WithLabelValues(label).Dec()
			d.apply(context.WithoutCancel(ctx), id, delta)
		}
	}
}

// drain flushes whatever is still buffered after shutdown was requested.
func (d *Dispatcher) drain(id int, label string, ch <-chan ports.UsageDelta) {
	for {
		select {
		case delta := <-ch:
			metrics.UsageQueueDepth.WithLabelValues(label).Dec()
			d.apply(context.Background(), id, delta)
		default:
			return
		}
	}
}

func (d *Dispatcher) apply(parent context.Context, id int, delta ports.UsageDelta) {
	ctx, cancel := context.WithTimeout(parent, applyTimeout)
	defer cancel()
	if err := d.repo.Apply(ctx, delta); err != nil {
		metrics.UsageErrorsTotal.Inc()
		d.log.Error().Err(err).
			Str("user_id", delta.UserID).
			Int("worker_id", id).
			Msg("usage update failed")
	}
}
