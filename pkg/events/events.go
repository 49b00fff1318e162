package events

import (
	"context"
	"time"
)

const (
	// EventTypeMatchFinished is published once per finished match
	EventTypeMatchFinished = "match.finished"
)

// Event is a notification about a session for other services.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Time      time.Time   `json:"time"`
	Data      interface{} `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
