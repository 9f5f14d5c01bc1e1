package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"flashfeed/internal/domain/flash"
	"flashfeed/pkg/errors"
)

// Redis key layout. One JSON value per flash, a global sorted set over
// publish time, one sorted set per symbol, and a single cursor value.
const (
	flashKeyPrefix  = "flash:"
	symbolKeyPrefix = "symbol_flashes:"
	timeIndexKey    = "all_flashes_by_time"
	cursorKey       = "flashes:last_processed_id"
)

// FlashRepository implements flash.Repository using Redis
type FlashRepository struct {
	client *redis.Client
}

// NewFlashRepository creates a new flash repository
func NewFlashRepository(client *redis.Client) *FlashRepository {
	return &FlashRepository{
		client: client,
	}
}

// Put upserts a flash under flash:<id> with the retention TTL
func (r *FlashRepository) Put(ctx context.Context, f *flash.Flash, ttl time.Duration) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal flash %s", f.ID)
	}

	if err := r.client.Set(ctx, flashKey(f.ID), data, ttl).Err(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "failed to store flash %s: %v", f.ID, err)
	}

	return nil
}

// Get retrieves a flash by id
func (r *FlashRepository) Get(ctx context.Context, id string) (*flash.Flash, error) {
	data, err := r.client.Get(ctx, flashKey(id)).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "flash %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "failed to get flash %s: %v", id, err)
	}

	var f flash.Flash
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal flash %s", id)
	}

	return &f, nil
}

// Cursor returns the last processed upstream id; ok is false when the
// cursor has never been written.
func (r *FlashRepository) Cursor(ctx context.Context) (int64, bool, error) {
	val, err := r.client.Get(ctx, cursorKey).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(errors.ErrUnavailable, "failed to read cursor: %v", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "malformed cursor value %q", val)
	}

	return id, true, nil
}

// CommitBatch replays the batch operations, in order, through one
// pipeline round trip. Atomicity is whatever the pipeline offers: the
// commands apply together on a healthy connection, but there is no
// cross-key transaction to roll back on partial failure. Callers retry
// the whole batch; flash puts are idempotent overwrites so a replay is
// safe.
func (r *FlashRepository) CommitBatch(ctx context.Context, b *flash.Batch) error {
	if b == nil || b.Empty() {
		return nil
	}

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range b.Ops {
			switch {
			case op.Put != nil:
				data, err := json.Marshal(op.Put)
				if err != nil {
					return errors.Wrapf(err, "failed to marshal flash %s", op.Put.ID)
				}
				pipe.Set(ctx, flashKey(op.Put.ID), data, op.TTL)

			case op.TimeIndex != nil:
				pipe.ZAdd(ctx, timeIndexKey, redis.Z{
					Score:  float64(op.TimeIndex.PublishedAt.Unix()),
					Member: op.TimeIndex.ID,
				})

			case op.SymbolIndex != nil:
				pipe.ZAdd(ctx, symbolKey(op.SymbolIndex.Symbol), redis.Z{
					Score:  float64(op.SymbolIndex.PublishedAt.Unix()),
					Member: op.SymbolIndex.ID,
				})

			case op.SetCursor != nil:
				pipe.Set(ctx, cursorKey, strconv.FormatInt(*op.SetCursor, 10), 0)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "batch commit failed: %v", err)
	}

	return nil
}

// RangeByTime returns flash ids published inside [from, to], newest first
func (r *FlashRepository) RangeByTime(ctx context.Context, from, to time.Time) ([]string, error) {
	ids, err := r.client.ZRevRangeByScore(ctx, timeIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "time range query failed: %v", err)
	}

	return ids, nil
}

// RangeBySymbol returns flash ids for one symbol inside [from, to],
// newest first
func (r *FlashRepository) RangeBySymbol(ctx context.Context, symbol string, from, to time.Time) ([]string, error) {
	ids, err := r.client.ZRevRangeByScore(ctx, symbolKey(symbol), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "symbol range query failed: %v", err)
	}

	return ids, nil
}

func flashKey(id string) string {
	return flashKeyPrefix + id
}

func symbolKey(symbol string) string {
	return symbolKeyPrefix + symbol
}
