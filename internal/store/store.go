// Package store owns the slot collection and enforces the capacity invariant
// under concurrent access. All mutation goes through a SlotStore; callers must
// never mutate a Slot snapshot obtained from List and expect it persisted.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/arducoaching/slot-booking/internal/model"
)

// ErrNotFound is returned when a requested slot does not exist.
var ErrNotFound = errors.New("slot not found")

// ErrSlotFull is returned when a slot has no remaining capacity at the
// moment of the atomic check.
var ErrSlotFull = errors.New("slot is fully booked")

// ErrInvalidInput is returned when required fields are missing or malformed.
// Validation happens before any storage access.
var ErrInvalidInput = errors.New("invalid input")

// ErrStorageUnavailable is returned when the backing store is unreachable
// or rejected an operation.
var ErrStorageUnavailable = errors.New("storage unavailable")

// SlotStore maintains the slot collection and provides atomic mutation
// primitives. Reserve must be atomic with respect to other concurrent
// Reserve calls on the same slot: the capacity check and the increment
// execute as one indivisible unit spanning the storage round-trip.
type SlotStore interface {
	// List returns slots sorted ascending by scheduledAt. When after is
	// non-nil, only slots scheduled at or after it are returned.
	List(ctx context.Context, after *time.Time) ([]model.Slot, error)

	// Publish persists a new, already-validated slot.
	Publish(ctx context.Context, slot model.Slot) (model.Slot, error)

	// Reserve claims one seat and returns the updated slot.
	Reserve(ctx context.Context, slotID string, att model.Attendee) (model.Slot, error)

	// Remove deletes the slot. Removing an absent id is a success: the
	// only postcondition is that the slot is gone.
	Remove(ctx context.Context, slotID string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// sortByScheduledAt orders a slot sequence ascending by its timestamp.
// Insertion order is never exposed to callers.
func sortByScheduledAt(slots []model.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].ScheduledAt.Before(slots[j].ScheduledAt)
	})
}

// cloneSlot returns a copy whose attendees slice does not alias the stored one.
func cloneSlot(s model.Slot) model.Slot {
	out := s
	out.Attendees = make([]model.Attendee, len(s.Attendees))
	copy(out.Attendees, s.Attendees)
	return out
}
