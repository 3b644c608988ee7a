package storage

import (
	"context"
	"errors"
	"time"

	"tickwise/internal/event"
)

// Keys of the records kept in the key-value table.
const (
	KeyAlarms       = "alarms"
	KeyTimerSession = "timer.session"
	KeyGoals        = "goals"
)

var ErrClosed = errors.New("storage is closed")

type Storage interface {
	Init(ctx context.Context) error
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
	GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error)
	// Put stores value as JSON under key. Get decodes it into value and
	// reports whether the key existed.
	Put(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, value any) (bool, error)
	Close() error
}
