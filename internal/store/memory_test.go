package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arducoaching/slot-booking/internal/model"
)

func newTestSlot(scheduledAt time.Time, capacity int) model.Slot {
	return model.Slot{
		ID:          uuid.New().String(),
		Theme:       model.DefaultTheme,
		Kind:        model.DefaultKind,
		ScheduledAt: scheduledAt,
		Capacity:    capacity,
		Attendees:   []model.Attendee{},
	}
}

func TestMemoryStore_NoOversell(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const capacity = 5
	const attempts = 50

	slot, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), capacity))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, fulls := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			att := model.Attendee{Name: fmt.Sprintf("client-%d", n), Phone: fmt.Sprintf("+3240000%04d", n)}
			_, err := s.Reserve(ctx, slot.ID, att)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotFull):
				fulls++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, successes)
	assert.Equal(t, attempts-capacity, fulls)

	slots, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, capacity, slots[0].BookedCount)
	assert.Len(t, slots[0].Attendees, capacity)
}

func TestMemoryStore_ReservesOnDistinctSlotsDoNotInterfere(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), 10))
	require.NoError(t, err)
	b, err := s.Publish(ctx, newTestSlot(time.Now().Add(2*time.Hour), 10))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, id := range []string{a.ID, b.ID} {
			wg.Add(1)
			go func(id string, n int) {
				defer wg.Done()
				_, err := s.Reserve(ctx, id, model.Attendee{Name: fmt.Sprintf("c%d", n), Phone: "+32400000000"})
				assert.NoError(t, err)
			}(id, i)
		}
	}
	wg.Wait()

	slots, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	for _, slot := range slots {
		assert.Equal(t, 10, slot.BookedCount)
		assert.Len(t, slot.Attendees, 10)
	}
}

func TestMemoryStore_ReserveRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	slot, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), 1))
	require.NoError(t, err)

	updated, err := s.Reserve(ctx, slot.ID, model.Attendee{Name: "Ana", Phone: "+32400000001"})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Remaining())

	_, err = s.Reserve(ctx, slot.ID, model.Attendee{Name: "Eve", Phone: "+32400000002"})
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestMemoryStore_ReserveUnknownSlot(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Reserve(context.Background(), "missing", model.Attendee{Name: "Ana", Phone: "+32400000001"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListSortedByScheduledAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	later, err := s.Publish(ctx, newTestSlot(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), 2))
	require.NoError(t, err)
	earlier, err := s.Publish(ctx, newTestSlot(time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC), 2))
	require.NoError(t, err)

	slots, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, earlier.ID, slots[0].ID)
	assert.Equal(t, later.ID, slots[1].ID)
}

func TestMemoryStore_ListIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), 2))
	require.NoError(t, err)
	_, err = s.Publish(ctx, newTestSlot(time.Now().Add(2*time.Hour), 2))
	require.NoError(t, err)

	first, err := s.List(ctx, nil)
	require.NoError(t, err)
	second, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMemoryStore_ListUpcomingFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Publish(ctx, newTestSlot(time.Now().Add(-time.Hour), 2))
	require.NoError(t, err)
	upcoming, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), 2))
	require.NoError(t, err)

	now := time.Now()
	slots, err := s.List(ctx, &now)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, upcoming.ID, slots[0].ID)
}

func TestMemoryStore_RemoveIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	slot, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), 2))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, slot.ID))
	slots, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// Removing an id that is already gone is still a success.
	require.NoError(t, s.Remove(ctx, slot.ID))
	require.NoError(t, s.Remove(ctx, "never-existed"))
}

func TestMemoryStore_ListSnapshotIsDetached(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	slot, err := s.Publish(ctx, newTestSlot(time.Now().Add(time.Hour), 2))
	require.NoError(t, err)
	_, err = s.Reserve(ctx, slot.ID, model.Attendee{Name: "Ana", Phone: "+32400000001"})
	require.NoError(t, err)

	slots, err := s.List(ctx, nil)
	require.NoError(t, err)
	slots[0].BookedCount = 99
	slots[0].Attendees[0].Name = "mutated"

	fresh, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh[0].BookedCount)
	assert.Equal(t, "Ana", fresh[0].Attendees[0].Name)
}
