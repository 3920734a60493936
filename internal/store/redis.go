package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arducoaching/slot-booking/internal/model"
)

// slotsKey is the single key holding the whole collection, the same layout
// the hosted KV deployment used.
const slotsKey = "slots"

// maxTxRetries bounds the optimistic retry loop. Every aborted EXEC implies
// another writer committed, so contention drains quickly in practice.
const maxTxRetries = 16

// RedisStore persists the slot collection as one JSON value under one key.
// Redis offers no transactions across a get-then-set, so every mutation runs
// inside a WATCH/MULTI block: a concurrent write to the key between our read
// and our EXEC aborts the transaction, and the operation retries against a
// fresh read. The capacity check therefore always acts on the state it
// writes back against.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore constructs a store on top of a Redis connection.
func NewRedisStore(opts *redis.Options) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(opts), key: slotsKey}
}

// List returns the collection sorted ascending by scheduledAt.
func (s *RedisStore) List(ctx context.Context, after *time.Time) ([]model.Slot, error) {
	slots, err := s.load(ctx, s.rdb)
	if err != nil {
		return nil, err
	}
	if after != nil {
		filtered := slots[:0]
		for _, slot := range slots {
			if !slot.ScheduledAt.Before(*after) {
				filtered = append(filtered, slot)
			}
		}
		slots = filtered
	}
	sortByScheduledAt(slots)
	return slots, nil
}

// Publish appends the slot to the collection.
func (s *RedisStore) Publish(ctx context.Context, slot model.Slot) (model.Slot, error) {
	err := s.mutate(ctx, func(slots []model.Slot) ([]model.Slot, error) {
		return append(slots, slot), nil
	})
	if err != nil {
		return model.Slot{}, err
	}
	return slot, nil
}

// Reserve claims one seat inside a WATCH/MULTI transaction.
func (s *RedisStore) Reserve(ctx context.Context, slotID string, att model.Attendee) (model.Slot, error) {
	var updated model.Slot
	err := s.mutate(ctx, func(slots []model.Slot) ([]model.Slot, error) {
		idx := -1
		for i := range slots {
			if slots[i].ID == slotID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrNotFound
		}
		slot := slots[idx]
		if slot.IsFull() {
			return nil, ErrSlotFull
		}
		slot.BookedCount++
		slot.Attendees = append(slot.Attendees, att)
		slots[idx] = slot
		updated = slot
		return slots, nil
	})
	if err != nil {
		return model.Slot{}, err
	}
	return updated, nil
}

// Remove filters the slot out of the collection. An absent id leaves the
// collection untouched and still succeeds.
func (s *RedisStore) Remove(ctx context.Context, slotID string) error {
	return s.mutate(ctx, func(slots []model.Slot) ([]model.Slot, error) {
		next := make([]model.Slot, 0, len(slots))
		for _, slot := range slots {
			if slot.ID != slotID {
				next = append(next, slot)
			}
		}
		return next, nil
	})
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// load reads and decodes the collection. A missing key is an empty collection.
func (s *RedisStore) load(ctx context.Context, c redis.Cmdable) ([]model.Slot, error) {
	raw, err := c.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return []model.Slot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, s.key, err)
	}
	var slots []model.Slot
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("%w: decode slot collection: %v", ErrStorageUnavailable, err)
	}
	return slots, nil
}

// mutate applies fn to the current collection and writes the result back as
// one value. The key is WATCHed across the read-check-write sequence; when a
// concurrent writer invalidates it the EXEC fails and the whole sequence
// retries with a fresh read, up to maxTxRetries times. The write is
// all-or-nothing: fn returning an error aborts without touching the key.
func (s *RedisStore) mutate(ctx context.Context, fn func(slots []model.Slot) ([]model.Slot, error)) error {
	txf := func(tx *redis.Tx) error {
		slots, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(slots)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode slot collection: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, payload, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !isDomainErr(err) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: write conflict persisted after %d attempts", ErrStorageUnavailable, maxTxRetries)
}

// isDomainErr reports whether err is one of the store's sentinel outcomes
// rather than a backend failure.
func isDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSlotFull) ||
		errors.Is(err, ErrStorageUnavailable)
}
