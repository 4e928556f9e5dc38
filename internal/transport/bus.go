package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/cellnode/internal/log"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

// Bus is an in-process message bus with a serialized dispatch loop.
type Bus struct {
	queue    chan Envelope
	seq      atomic.Int64
	logger   *slog.Logger
	recorder Recorder

	mu       sync.RWMutex
	handlers map[string][]Handler
	taps     []Tap
	services map[string]ServiceHandler
	// advertised is closed and replaced whenever a service is advertised,
	// waking WaitForService callers.
	advertised chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan Envelope, n)
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder wires bus counters.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) {
		if r != nil {
			b.recorder = r
		}
	}
}

// NewBus creates a Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		queue:      make(chan Envelope, DefaultQueueSize),
		logger:     log.WithComponent("bus"),
		recorder:   nopRecorder{},
		handlers:   make(map[string][]Handler),
		services:   make(map[string]ServiceHandler),
		advertised: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for channel. Handlers of one channel run in
// registration order.
func (b *Bus) Subscribe(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], h)
}

// Subscribe registers a typed handler: payloads are decoded into T and
// envelopes that fail to decode never reach fn.
func Subscribe[T any](b *Bus, channel string, fn func(T)) {
	b.Subscribe(channel, func(payload json.RawMessage) error {
		msg, err := protocol.Decode[T](payload)
		if err != nil {
			return err
		}
		fn(msg)
		return nil
	})
}

// AddTap registers an observer of every dispatched envelope.
func (b *Bus) AddTap(t Tap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taps = append(b.taps, t)
}

// Publish encodes msg and enqueues it on channel. Failures are logged and
// otherwise dropped.
func (b *Bus) Publish(channel string, msg any) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		b.logger.Warn("dropping unencodable message", "channel", channel, "error", err)
		return
	}
	if err := b.PublishRaw(channel, payload); err != nil {
		b.logger.Warn("dropping message", "channel", channel, "error", err)
	}
}

// PublishRaw enqueues an already encoded payload without blocking.
func (b *Bus) PublishRaw(channel string, payload json.RawMessage) error {
	env := Envelope{
		ID:      uuid.NewString(),
		Seq:     b.seq.Add(1),
		Channel: channel,
		At:      time.Now().UTC(),
		Payload: payload,
	}
	select {
	case b.queue <- env:
		b.recorder.Enqueued(channel)
		return nil
	default:
		b.recorder.Dropped(channel)
		return fmt.Errorf("publish %s: %w", channel, ErrQueueFull)
	}
}

// Depth returns the number of envelopes waiting for dispatch.
func (b *Bus) Depth() int {
	return len(b.queue)
}

// Spin runs the dispatch loop until ctx is cancelled.
// This is a blocking call; it is the only goroutine that runs handlers.
func (b *Bus) Spin(ctx context.Context) error {
	b.logger.Info("dispatch loop started")
	defer b.logger.Info("dispatch loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-b.queue:
			b.dispatch(env)
		}
	}
}

// SpinOnce dispatches one queued envelope if there is one.
func (b *Bus) SpinOnce() bool {
	select {
	case env := <-b.queue:
		b.dispatch(env)
		return true
	default:
		return false
	}
}

// Drain dispatches until the queue is empty, including envelopes published
// by the handlers it runs.
func (b *Bus) Drain() int {
	n := 0
	for b.SpinOnce() {
		n++
	}
	return n
}

func (b *Bus) dispatch(env Envelope) {
	start := time.Now()

	b.mu.RLock()
	handlers := b.handlers[env.Channel]
	taps := b.taps
	b.mu.RUnlock()

	for _, tap := range taps {
		tap(env)
	}
	for _, h := range handlers {
		if err := h(env.Payload); err != nil {
			b.recorder.DecodeFailed(env.Channel)
			b.logger.Warn("rejected message", "channel", env.Channel, "id", env.ID, "error", err)
		}
	}
	b.recorder.Dispatched(env.Channel, time.Since(start))
}
