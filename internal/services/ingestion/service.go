package ingestion

import (
	"context"
	"time"

	"flashfeed/internal/domain/flash"
	"flashfeed/internal/metrics"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

// FeedSource fetches one page of upstream items newer than
// lastProcessedID (0 = no cursor yet), oldest first, plus the newest
// upstream id seen in the page.
type FeedSource interface {
	Fetch(ctx context.Context, lastProcessedID int64) ([]*flash.Flash, int64, error)
}

// Enqueuer hands stored flash ids to the enrichment pool
type Enqueuer interface {
	Enqueue(id string) bool
}

// Service runs one ingestion cycle: read cursor, fetch, persist and
// index new flashes in one batch, advance the cursor, enqueue
// enrichment tasks.
type Service struct {
	repo  flash.Repository
	feed  FeedSource
	queue Enqueuer
	ttl   time.Duration
	log   *logger.Logger
}

// NewService creates a new ingestion service
func NewService(repo flash.Repository, feed FeedSource, queue Enqueuer, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		feed:  feed,
		queue: queue,
		ttl:   ttl,
		log:   logger.Get().With("component", "ingestion"),
	}
}

// RunCycle executes one ingestion cycle and returns the number of
// flashes stored. The cursor is only advanced inside the committed
// batch; a failed cycle leaves it untouched.
func (s *Service) RunCycle(ctx context.Context) (int, error) {
	cursor, hasCursor, err := s.repo.Cursor(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read cursor")
	}

	flashes, batchLatestID, err := s.feed.Fetch(ctx, cursor)
	if err != nil {
		return 0, errors.Wrap(err, "fetch feed page")
	}

	if len(flashes) == 0 {
		// The upstream id space can skip values, and an already-seen id
		// can reappear in a later page after edits. Advancing on
		// batchLatestID keeps the cursor from lagging forever behind a
		// dead zone.
		if batchLatestID > 0 && (!hasCursor || batchLatestID > cursor) {
			batch := flash.NewBatch().SetCursor(batchLatestID)
			if err := s.repo.CommitBatch(ctx, batch); err != nil {
				return 0, errors.Wrap(err, "advance cursor")
			}
			s.log.Infof("No new flashes; cursor advanced to %d", batchLatestID)
		}
		return 0, nil
	}

	batch := flash.NewBatch()
	maxSeenID := cursor
	storedIDs := make([]string, 0, len(flashes))

	for _, f := range flashes {
		// The record put precedes the index entries referencing it
		batch.Put(f, s.ttl)

		if f.PublishedAt != nil {
			batch.IndexByTime(f.ID, *f.PublishedAt)
			for _, sym := range f.Symbols {
				batch.IndexBySymbol(sym.Symbol, f.ID, *f.PublishedAt)
			}
		} else {
			s.log.Warnf("Flash %s has no publish timestamp; stored but not indexed", f.ID)
		}

		if f.UpstreamID > maxSeenID {
			maxSeenID = f.UpstreamID
		}
		storedIDs = append(storedIDs, f.ID)
	}

	finalCursor := maxSeenID
	if batchLatestID > finalCursor {
		finalCursor = batchLatestID
	}
	batch.SetCursor(finalCursor)

	if err := s.repo.CommitBatch(ctx, batch); err != nil {
		return 0, errors.Wrap(err, "commit ingestion batch")
	}

	// Enqueue only after the batch committed so every task references a
	// stored record.
	for _, id := range storedIDs {
		if !s.queue.Enqueue(id) {
			s.log.Warnf("Enrichment queue full; dropping task for %s", id)
		}
	}

	metrics.FlashesStored.Add(float64(len(storedIDs)))
	s.log.Infof("Stored %d new flashes; cursor advanced to %d", len(storedIDs), finalCursor)

	return len(storedIDs), nil
}
