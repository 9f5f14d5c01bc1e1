package query

import (
	"context"
	"time"

	"flashfeed/internal/domain/flash"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

// DefaultWindow bounds how far back the latest-flashes listing reaches
const DefaultWindow = 24 * time.Hour

// Service serves read queries over stored flashes
type Service struct {
	repo   flash.Repository
	window time.Duration
	log    *logger.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewService creates a new query service
func NewService(repo flash.Repository) *Service {
	return &Service{
		repo:   repo,
		window: DefaultWindow,
		log:    logger.Get().With("component", "query"),
		now:    time.Now,
	}
}

// ListLatest returns enriched flashes published within the last 24
// hours, newest first, paginated with skip/limit applied after the
// enriched-only filter. Flashes still awaiting analysis are excluded;
// ids left in the index after their record expired are skipped.
func (s *Service) ListLatest(ctx context.Context, skip, limit int) ([]*flash.Flash, error) {
	if skip < 0 || limit < 1 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "skip must be >= 0 and limit >= 1")
	}

	to := s.now().UTC()
	from := to.Add(-s.window)

	ids, err := s.repo.RangeByTime(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "range time index")
	}

	results := make([]*flash.Flash, 0, limit)
	matched := 0
	for _, id := range ids {
		f, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				// Record expired but its index entry has not been pruned yet
				s.log.Debugf("Flash %s indexed but missing; skipping", id)
				continue
			}
			return nil, errors.Wrapf(err, "load flash %s", id)
		}

		if f.Analysis == nil {
			continue
		}

		if matched >= skip {
			results = append(results, f)
			if len(results) == limit {
				break
			}
		}
		matched++
	}

	return results, nil
}
