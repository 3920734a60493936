// Package model defines the core domain types for the slot booking system.
package model

import (
	"fmt"
	"time"
)

// Defaults applied when a publish request omits the display fields.
const (
	DefaultTheme = "Coaching session"
	DefaultKind  = "individual"
)

// Slot represents a bookable time window published by the coach.
type Slot struct {
	ID          string     `json:"id"`
	Theme       string     `json:"theme"`
	Kind        string     `json:"kind"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	Capacity    int        `json:"capacity"`
	BookedCount int        `json:"bookedCount"`
	Attendees   []Attendee `json:"attendees"`
}

// Attendee is one claimed seat on a slot.
type Attendee struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Remaining returns the number of available seats.
func (s *Slot) Remaining() int {
	return s.Capacity - s.BookedCount
}

// IsFull returns true when no seats remain.
func (s *Slot) IsFull() bool {
	return s.BookedCount >= s.Capacity
}

// PublishRequest is the payload for publishing a new slot.
type PublishRequest struct {
	Theme            string `json:"theme"`
	Kind             string `json:"kind"`
	ScheduledAt      string `json:"scheduledAt"`
	Capacity         int    `json:"capacity"`
	BroadcastMessage string `json:"broadcastMessage"`
}

// ReserveRequest is the payload for reserving a seat on a slot.
type ReserveRequest struct {
	SlotID string `json:"slotId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// MessageResponse is the standard JSON envelope with a human-readable message.
// Programmatic callers should rely on the status code, not the text.
type MessageResponse struct {
	Message string `json:"message"`
}

// SlotsResponse is the body of a successful listing.
type SlotsResponse struct {
	Slots []Slot `json:"slots"`
}

// PublishResponse is the body of a successful publish.
type PublishResponse struct {
	Message string `json:"message"`
	Slot    Slot   `json:"slot"`
}

// ReserveResponse is the body of a successful reservation.
type ReserveResponse struct {
	Message   string `json:"message"`
	Remaining int    `json:"remaining"`
}

// scheduledAtLayouts are the accepted timestamp forms: the datetime-local
// value produced by the admin form, and full RFC 3339.
var scheduledAtLayouts = []string{"2006-01-02T15:04", time.RFC3339}

// ParseScheduledAt parses a slot timestamp in either accepted layout.
func ParseScheduledAt(value string) (time.Time, error) {
	for _, layout := range scheduledAtLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}
