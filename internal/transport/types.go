package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrQueueFull       = errors.New("message queue full")
	ErrServiceNotFound = errors.New("service not found")
)

// DefaultQueueSize bounds the number of envelopes waiting for dispatch.
const DefaultQueueSize = 100

// Envelope is one message in flight on a channel.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     int64           `json:"seq"`
	Channel string          `json:"channel"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Handler consumes the raw payload of a channel message. A returned error
// means the payload was rejected; it is logged and never stops the loop.
type Handler func(payload json.RawMessage) error

// ServiceHandler answers an in-process service call.
type ServiceHandler func(ctx context.Context, req json.RawMessage) (any, error)

// Tap observes every envelope right before its handlers run.
type Tap func(env Envelope)

// Recorder receives bus counters. metrics.Metrics implements it.
type Recorder interface {
	Enqueued(channel string)
	Dropped(channel string)
	Dispatched(channel string, elapsed time.Duration)
	DecodeFailed(channel string)
}

type nopRecorder struct{}

func (nopRecorder) Enqueued(string)                  {}
func (nopRecorder) Dropped(string)                   {}
func (nopRecorder) Dispatched(string, time.Duration) {}
func (nopRecorder) DecodeFailed(string)              {}
