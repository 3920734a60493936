// Package service implements business logic, validation, and notification
// dispatch between HTTP handlers and the slot store.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arducoaching/slot-booking/internal/model"
	"github.com/arducoaching/slot-booking/internal/notify"
	"github.com/arducoaching/slot-booking/internal/store"
)

// sendTimeout bounds a single background delivery attempt. Requests never
// wait on it.
const sendTimeout = 15 * time.Second

// Options carries the notification recipients and toggles.
type Options struct {
	// CoachPhone receives a summary for every reservation.
	CoachPhone string
	// BroadcastNumbers receive the optional publish announcement.
	BroadcastNumbers []string
	// ClientConfirmation enables the confirmation SMS to the reserving client.
	ClientConfirmation bool
}

// BookingService orchestrates slot operations. Validation runs before any
// storage access; notifications are dispatched after the storage outcome is
// settled and can never change it.
type BookingService struct {
	store    store.SlotStore
	notifier notify.Notifier
	opts     Options
}

// NewBookingService constructs a BookingService with its collaborators.
func NewBookingService(st store.SlotStore, notifier notify.Notifier, opts Options) *BookingService {
	return &BookingService{store: st, notifier: notifier, opts: opts}
}

// List returns slots sorted ascending by scheduledAt, optionally only
// upcoming ones.
func (s *BookingService) List(ctx context.Context, upcomingOnly bool) ([]model.Slot, error) {
	var after *time.Time
	if upcomingOnly {
		now := time.Now()
		after = &now
	}
	return s.store.List(ctx, after)
}

// Publish validates the request, persists a new slot with a fresh id and
// zero bookings, and optionally fans a broadcast message out to the
// configured recipient list (best-effort, never delaying the response).
func (s *BookingService) Publish(ctx context.Context, req model.PublishRequest) (model.Slot, error) {
	req.ScheduledAt = strings.TrimSpace(req.ScheduledAt)
	if req.ScheduledAt == "" {
		return model.Slot{}, fmt.Errorf("%w: scheduledAt is required", store.ErrInvalidInput)
	}
	when, err := model.ParseScheduledAt(req.ScheduledAt)
	if err != nil {
		return model.Slot{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if req.Capacity <= 0 {
		return model.Slot{}, fmt.Errorf("%w: capacity must be a positive integer", store.ErrInvalidInput)
	}

	slot := model.Slot{
		ID:          uuid.New().String(),
		Theme:       defaultIfEmpty(req.Theme, model.DefaultTheme),
		Kind:        defaultIfEmpty(req.Kind, model.DefaultKind),
		ScheduledAt: when,
		Capacity:    req.Capacity,
		BookedCount: 0,
		Attendees:   []model.Attendee{},
	}

	created, err := s.store.Publish(ctx, slot)
	if err != nil {
		return model.Slot{}, err
	}

	if msg := strings.TrimSpace(req.BroadcastMessage); msg != "" {
		for _, to := range s.opts.BroadcastNumbers {
			s.send(to, msg)
		}
	}
	return created, nil
}

// Reserve validates the request and delegates the atomic seat claim to the
// store. On success it returns the remaining capacity and notifies the coach
// (and the client, when enabled) in the background.
func (s *BookingService) Reserve(ctx context.Context, req model.ReserveRequest) (int, error) {
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.SlotID == "" || req.Name == "" || req.Phone == "" {
		return 0, fmt.Errorf("%w: slotId, name and phone are required", store.ErrInvalidInput)
	}

	slot, err := s.store.Reserve(ctx, req.SlotID, model.Attendee{Name: req.Name, Phone: req.Phone})
	if err != nil {
		return 0, err
	}

	when := slot.ScheduledAt.Format("Mon 2 Jan 15:04")
	s.send(s.opts.CoachPhone, fmt.Sprintf(
		"%s (%s) booked %q (%s) on %s. Remaining: %d",
		req.Name, req.Phone, slot.Theme, slot.Kind, when, slot.Remaining(),
	))
	if s.opts.ClientConfirmation {
		s.send(req.Phone, fmt.Sprintf(
			"Thanks %s! Your booking for %q (%s) is confirmed.",
			req.Name, slot.Theme, slot.Kind,
		))
	}
	return slot.Remaining(), nil
}

// Remove deletes the slot. Removing an id that is already gone succeeds.
func (s *BookingService) Remove(ctx context.Context, slotID string) error {
	slotID = strings.TrimSpace(slotID)
	if slotID == "" {
		return fmt.Errorf("%w: id is required", store.ErrInvalidInput)
	}
	return s.store.Remove(ctx, slotID)
}

// Ping reports backing-store reachability for the health endpoint.
func (s *BookingService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// send dispatches one message in the background. Delivery is best-effort:
// failures are logged and never surface to the caller.
func (s *BookingService) send(to, body string) {
	if to == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, to, body); err != nil {
			log.Printf("notification to %s failed: %v", to, err)
		}
	}()
}

func defaultIfEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
