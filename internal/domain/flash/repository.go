package flash

import (
	"context"
	"time"
)

// Repository defines the interface for flash persistence (Redis).
// Absent values surface as errors.ErrNotFound; store outages wrap
// errors.ErrUnavailable.
type Repository interface {
	// Put upserts a flash with a retention TTL. Re-putting the same id
	// overwrites the whole value and refreshes the TTL.
	Put(ctx context.Context, f *Flash, ttl time.Duration) error

	// Get retrieves a flash by id
	Get(ctx context.Context, id string) (*Flash, error)

	// Cursor returns the last processed upstream id. ok is false when no
	// cursor has ever been written.
	Cursor(ctx context.Context) (value int64, ok bool, err error)

	// CommitBatch submits a batch of write operations through one
	// pipeline. The batch either eventually applies in full or the
	// caller retries it in full; the consistency bound is the store
	// engine's pipelined-command guarantee, not a multi-key transaction.
	CommitBatch(ctx context.Context, b *Batch) error

	// RangeByTime returns flash ids published inside [from, to],
	// newest first.
	RangeByTime(ctx context.Context, from, to time.Time) ([]string, error)
}

// BatchOp is one operation inside a Batch
type BatchOp struct {
	Put         *Flash
	TTL         time.Duration
	TimeIndex   *IndexEntry
	SymbolIndex *SymbolIndexEntry
	SetCursor   *int64
}

// IndexEntry adds an id to the global time index
type IndexEntry struct {
	ID          string
	PublishedAt time.Time
}

// SymbolIndexEntry adds an id to one symbol's index
type SymbolIndexEntry struct {
	Symbol      string
	ID          string
	PublishedAt time.Time
}

// Batch accumulates ordered write operations for one pipeline round
// trip. Callers append the record put before the index entries that
// reference it; the repository preserves submission order.
type Batch struct {
	Ops []BatchOp
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

// Put schedules a flash upsert
func (b *Batch) Put(f *Flash, ttl time.Duration) *Batch {
	b.Ops = append(b.Ops, BatchOp{Put: f, TTL: ttl})
	return b
}

// IndexByTime schedules a global time-index insert
func (b *Batch) IndexByTime(id string, publishedAt time.Time) *Batch {
	b.Ops = append(b.Ops, BatchOp{TimeIndex: &IndexEntry{ID: id, PublishedAt: publishedAt}})
	return b
}

// IndexBySymbol schedules a per-symbol index insert
func (b *Batch) IndexBySymbol(symbol, id string, publishedAt time.Time) *Batch {
	b.Ops = append(b.Ops, BatchOp{SymbolIndex: &SymbolIndexEntry{Symbol: symbol, ID: id, PublishedAt: publishedAt}})
	return b
}

// SetCursor schedules a cursor write
func (b *Batch) SetCursor(v int64) *Batch {
	b.Ops = append(b.Ops, BatchOp{SetCursor: &v})
	return b
}

// Empty reports whether the batch holds no operations
func (b *Batch) Empty() bool {
	return len(b.Ops) == 0
}
