package store

import (
	"context"
	"sync"
	"time"

	"github.com/arducoaching/slot-booking/internal/model"
)

// MemoryStore keeps the slot collection in process memory. It is the fallback
// when no external backend is configured; contents do not survive a restart.
//
// The collection map is guarded by an RWMutex; each slot additionally carries
// its own mutex which is held across the check-and-increment of a reservation,
// so reserves on distinct slots never serialize against each other.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]*memorySlot
}

type memorySlot struct {
	mu   sync.Mutex // serializes reserves on this slot
	slot model.Slot
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]*memorySlot)}
}

// List returns a snapshot of the collection sorted ascending by scheduledAt.
func (s *MemoryStore) List(ctx context.Context, after *time.Time) ([]model.Slot, error) {
	s.mu.RLock()
	entries := make([]*memorySlot, 0, len(s.slots))
	for _, e := range s.slots {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]model.Slot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		snapshot := cloneSlot(e.slot)
		e.mu.Unlock()
		if after != nil && snapshot.ScheduledAt.Before(*after) {
			continue
		}
		out = append(out, snapshot)
	}
	sortByScheduledAt(out)
	return out, nil
}

// Publish inserts the slot into the collection.
func (s *MemoryStore) Publish(ctx context.Context, slot model.Slot) (model.Slot, error) {
	s.mu.Lock()
	s.slots[slot.ID] = &memorySlot{slot: cloneSlot(slot)}
	s.mu.Unlock()
	return slot, nil
}

// Reserve claims one seat. The slot mutex is held from the capacity check
// through the attendee append, so no other reserve on the same slot can
// observe an intermediate state.
func (s *MemoryStore) Reserve(ctx context.Context, slotID string, att model.Attendee) (model.Slot, error) {
	s.mu.RLock()
	entry, ok := s.slots[slotID]
	s.mu.RUnlock()
	if !ok {
		return model.Slot{}, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.slot.IsFull() {
		return model.Slot{}, ErrSlotFull
	}
	entry.slot.BookedCount++
	entry.slot.Attendees = append(entry.slot.Attendees, att)
	return cloneSlot(entry.slot), nil
}

// Remove deletes the slot if present. Absence after the call is success.
func (s *MemoryStore) Remove(ctx context.Context, slotID string) error {
	s.mu.Lock()
	delete(s.slots, slotID)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds: there is no remote backend to reach.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
