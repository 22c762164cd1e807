// Package audit reports committed draft saves to an external sink.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Action string

const (
	ActionDraftSaved   Action = "draft_saved"
	ActionDraftUpdated Action = "draft_updated"
)

// Event is one committed SaveDraft call.
type Event struct {
	ID              string    `json:"id"`
	Action          Action    `json:"action"`
	PrimaryEntityID int64     `json:"primaryEntityId"`
	OwnerKey        string    `json:"ownerKey"`
	RequestID       string    `json:"requestId,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewEvent stamps a fresh event id.
func NewEvent(action Action, primaryEntityID int64, ownerKey string, at time.Time) Event {
	return Event{
		ID:              uuid.NewString(),
		Action:          action,
		PrimaryEntityID: primaryEntityID,
		OwnerKey:        ownerKey,
		Timestamp:       at.UTC(),
	}
}

// Sink receives audit events. Callers treat errors as non-fatal.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Multi fans an event out to every sink concurrently and returns the first error.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, event Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m {
		g.Go(func() error {
			return s.Emit(ctx, event)
		})
	}
	return g.Wait()
}

// Noop discards every event.
type Noop struct{}

func (Noop) Emit(context.Context, Event) error { return nil }
