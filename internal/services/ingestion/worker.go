package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flashfeed/internal/metrics"
	"flashfeed/internal/workers"
)

// Worker drives the ingestion service on a fixed interval. A failed
// cycle is retried a bounded number of times with a fixed backoff; once
// the budget is spent the cycle is abandoned and the next tick starts
// fresh from the persisted cursor.
type Worker struct {
	*workers.BaseWorker
	service     *Service
	maxAttempts int
	backoff     time.Duration
}

// NewWorker creates a new ingestion worker
func NewWorker(service *Service, interval time.Duration, maxAttempts int, backoff time.Duration, enabled bool) *Worker {
	return &Worker{
		BaseWorker:  workers.NewBaseWorker("flash_ingest", interval, enabled),
		service:     service,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Run executes one ingestion cycle with retries
func (w *Worker) Run(ctx context.Context) error {
	cycleID := uuid.NewString()
	log := w.Log().With("cycle_id", cycleID)

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		stored, err := w.service.RunCycle(ctx)
		if err == nil {
			if stored == 0 {
				metrics.IngestCycles.WithLabelValues("empty").Inc()
			} else {
				metrics.IngestCycles.WithLabelValues("success").Inc()
			}
			return nil
		}

		lastErr = err
		log.Warnf("Ingestion cycle attempt %d/%d failed: %v", attempt, w.maxAttempts, err)

		if attempt == w.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.backoff):
		}
	}

	metrics.IngestCycles.WithLabelValues("abandoned").Inc()
	log.Errorf("Ingestion cycle abandoned after %d attempts: %v", w.maxAttempts, lastErr)
	return lastErr
}
