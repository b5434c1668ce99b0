package rating

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/greenify/plant-store/internal/events"
	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("recompute queue is full")
	ErrWorkerStopped = errors.New("recompute worker is stopped")
)

type recomputer interface {
	Recompute(ctx context.Context, plantID string) error
}

type WorkerConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

// Worker recomputes plant ratings in the background. A plant that is
// already queued is not queued twice; a plant submitted while it is being
// recomputed is queued again, so the last write always gets a recompute.
type Worker struct {
	recomputer recomputer
	cfg        WorkerConfig
	logger     *zap.Logger

	mu      sync.Mutex
	queue   chan string
	queued  map[string]bool
	stopped bool

	wg sync.WaitGroup
}

func NewWorker(r recomputer, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Worker{
		recomputer: r,
		cfg:        cfg,
		logger:     logger,
		queue:      make(chan string, cfg.QueueSize),
		queued:     make(map[string]bool),
	}
}

// Start launches the worker goroutines. ctx bounds retries, not the queue:
// call Stop to drain and exit.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for plantID := range w.queue {
				w.mu.Lock()
				delete(w.queued, plantID)
				w.mu.Unlock()

				w.process(ctx, plantID)
			}
		}()
	}
}

func (w *Worker) Schedule(_ context.Context, submitted events.RatingSubmitted) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWorkerStopped
	}
	if w.queued[submitted.PlantID] {
		return nil
	}
	select {
	case w.queue <- submitted.PlantID:
		w.queued[submitted.PlantID] = true
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting work and waits until the queue is drained
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, plantID string) {
	backoff := w.cfg.Backoff
	for attempt := 1; ; attempt++ {
		err := w.recomputer.Recompute(context.WithoutCancel(ctx), plantID)
		if err == nil {
			return
		}
		if attempt >= w.cfg.MaxAttempts {
			w.logger.Error("rating recompute failed",
				zap.String("plant_id", plantID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}
		w.logger.Warn("rating recompute failed, retrying",
			zap.String("plant_id", plantID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
