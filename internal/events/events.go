// Package events publishes domain events about bookings and maintenance to
// RabbitMQ. Publishing is best effort: callers log failures and move on.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	BookingConfirmed   = "booking.confirmed"
	BookingCancelled   = "booking.cancelled"
	MaintenanceStarted = "maintenance.started"
	MaintenanceClosed  = "maintenance.closed"
)

// Event is the envelope written to the queue.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// New stamps an event with a fresh id.
func New(typ string, at time.Time, data any) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: at.UTC(), Data: data}
}

// BookingEvent is the payload of booking.* events.
type BookingEvent struct {
	BookingID int64     `json:"bookingId"`
	Code      string    `json:"code"`
	RoomID    int64     `json:"roomId"`
	HostID    int64     `json:"hostId"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	State     string    `json:"state"`
}

// MaintenanceEvent is the payload of maintenance.* events.
type MaintenanceEvent struct {
	RequestID  int64  `json:"requestId"`
	Code       string `json:"code"`
	RequestFor string `json:"requestFor"`
	TargetID   int64  `json:"targetId"`
	State      string `json:"state"`
	Restored   bool   `json:"restored"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
