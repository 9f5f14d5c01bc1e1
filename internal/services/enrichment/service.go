package enrichment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"flashfeed/internal/domain/flash"
	"flashfeed/internal/metrics"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

// Analyzer produces a structured analysis for a flash. Model reports
// the provider model identifier for provenance stamping.
type Analyzer interface {
	Analyze(ctx context.Context, content string, symbols []flash.Symbol) (*flash.Analysis, error)
	Model() string
}

// Config holds the enrichment pool tuning knobs
type Config struct {
	Workers      int
	QueueSize    int
	MaxAttempts  int
	Backoff      time.Duration
	RetentionTTL time.Duration
}

// Service enriches stored flashes with provider analyses. Tasks arrive
// through an in-process buffered queue and are consumed by a fixed pool
// of goroutines. The queue is volatile: tasks pending at shutdown are
// lost and the flash simply keeps a nil Analysis.
type Service struct {
	repo     flash.Repository
	analyzer Analyzer
	cfg      Config
	tasks    chan string
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	log      *logger.Logger

	mu      sync.Mutex
	started bool
}

// NewService creates a new enrichment service
func NewService(repo flash.Repository, analyzer Analyzer, cfg Config) *Service {
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		cfg:      cfg,
		tasks:    make(chan string, cfg.QueueSize),
		log:      logger.Get().With("component", "enrichment"),
	}
}

// Start launches the worker pool
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.Wrap(errors.ErrInternal, "enrichment pool already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.log.Infof("Enrichment pool started with %d workers, queue size %d", s.cfg.Workers, s.cfg.QueueSize)
	return nil
}

// Stop cancels in-flight analyses and waits for the pool to drain
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Enrichment pool stopped")
}

// Enqueue submits a flash id for analysis. Returns false when the
// queue is full; the caller decides whether dropping is acceptable.
func (s *Service) Enqueue(id string) bool {
	select {
	case s.tasks <- id:
		metrics.EnrichmentQueueDepth.Inc()
		return true
	default:
		return false
	}
}

func (s *Service) worker(ctx context.Context, n int) {
	defer s.wg.Done()
	log := s.log.With("enrich_worker", n)

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.tasks:
			metrics.EnrichmentQueueDepth.Dec()
			s.processTask(ctx, log, id)
		}
	}
}

// processTask runs the per-flash state machine: load, short-circuit on
// missing content, then a bounded analyze-retry loop ending in either a
// successful analysis or a terminal failure record.
func (s *Service) processTask(ctx context.Context, log *logger.Logger, id string) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			log.Errorf("Failed to load flash %s for enrichment: %v", id, err)
			metrics.EnrichmentAttempts.WithLabelValues("skipped").Inc()
			return
		}

		// The record expired or was never committed. Store a skeleton so
		// the task leaves a terminal trace; it stays unindexed and never
		// reaches the read API.
		log.Warnf("Flash %s no longer exists; storing no-analysis result", id)
		skeleton := &flash.Flash{
			ID:        id,
			CrawledAt: time.Now().UTC(),
			Source:    flash.SourceName,
		}
		s.saveAnalysis(ctx, log, skeleton, &flash.Analysis{
			Success: false,
			Error:   "flash record is missing",
			Type:    flash.AnalysisTypeGeneral,
		})
		metrics.EnrichmentAttempts.WithLabelValues("skipped").Inc()
		return
	}

	if strings.TrimSpace(f.Content) == "" {
		log.Warnf("Flash %s has empty content; storing no-analysis result", id)
		s.saveAnalysis(ctx, log, f, &flash.Analysis{
			Success: false,
			Error:   "flash content is empty",
			Type:    flash.AnalysisTypeGeneral,
		})
		metrics.EnrichmentAttempts.WithLabelValues("skipped").Inc()
		return
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		result, err := s.analyzer.Analyze(ctx, f.Content, f.Symbols)
		if err == nil {
			if s.saveAnalysis(ctx, log, f, result) {
				metrics.EnrichmentAttempts.WithLabelValues("success").Inc()
				log.Infof("Flash %s enriched (%s)", id, result.Type)
			}
			return
		}

		if ctx.Err() != nil {
			// Shutdown, not a provider failure; leave the flash unenriched
			return
		}

		lastErr = err
		log.Warnf("Enrichment attempt %d/%d for %s failed: %v", attempt, s.cfg.MaxAttempts, id, err)

		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			log.Debugf("Rejected provider response for %s: %s", id, truncate(verr.RawResponse, 500))
		}

		if attempt == s.cfg.MaxAttempts {
			break
		}
		metrics.EnrichmentAttempts.WithLabelValues("retryable").Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.Backoff):
		}
	}

	metrics.EnrichmentAttempts.WithLabelValues("terminal").Inc()
	log.Errorf("Enrichment for %s gave up after %d attempts: %v", id, s.cfg.MaxAttempts, lastErr)

	// Best effort: record the failure so readers can tell "analysis
	// failed" apart from "analysis pending".
	s.saveAnalysis(ctx, log, f, &flash.Analysis{
		Success: false,
		Error:   fmt.Sprintf("retries exhausted after %d attempts: %v", s.cfg.MaxAttempts, lastErr),
	})
}

// saveAnalysis stamps provenance, attaches the analysis to the flash
// and rewrites the record with a fresh retention TTL.
func (s *Service) saveAnalysis(ctx context.Context, log *logger.Logger, f *flash.Flash, a *flash.Analysis) bool {
	if a.ModelUsed == "" {
		a.ModelUsed = s.analyzer.Model()
	}
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now().UTC()
	}

	f.Analysis = a
	if err := s.repo.Put(ctx, f, s.cfg.RetentionTTL); err != nil {
		log.Errorf("Failed to persist analysis for %s: %v", f.ID, err)
		return false
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
