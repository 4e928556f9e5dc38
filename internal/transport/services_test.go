package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

func TestBusServiceCall(t *testing.T) {
	logger, _ := newTestLogger()
	b := NewBus(WithLogger(logger))
	ctx := context.Background()

	assert.False(t, b.Exists(ctx, protocol.ServiceConveyorControl))

	b.Advertise(protocol.ServiceConveyorControl, func(_ context.Context, raw json.RawMessage) (any, error) {
		req, err := protocol.Decode[protocol.ConveyorControlRequest](raw)
		if err != nil {
			return nil, err
		}
		return protocol.ControlResponse{Success: req.Power <= 100}, nil
	})
	assert.True(t, b.Exists(ctx, protocol.ServiceConveyorControl))

	var resp protocol.ControlResponse
	require.NoError(t, b.Call(ctx, protocol.ServiceConveyorControl, protocol.ConveyorControlRequest{Power: 50}, &resp))
	assert.True(t, resp.Success)

	require.NoError(t, b.Call(ctx, protocol.ServiceConveyorControl, protocol.ConveyorControlRequest{Power: 150}, &resp))
	assert.False(t, resp.Success)
}

func TestBusCallUnknownService(t *testing.T) {
	logger, _ := newTestLogger()
	b := NewBus(WithLogger(logger))

	err := b.Call(context.Background(), "/nope", protocol.TriggerRequest{}, nil)
	assert.True(t, errors.Is(err, ErrServiceNotFound))
}

func TestBusCallHandlerError(t *testing.T) {
	logger, _ := newTestLogger()
	b := NewBus(WithLogger(logger))
	b.Advertise("/broken", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("controller exploded")
	})

	err := b.Call(context.Background(), "/broken", protocol.TriggerRequest{}, &protocol.TriggerResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller exploded")
}

func TestBusWaitForServiceBlocksUntilAdvertised(t *testing.T) {
	logger, _ := newTestLogger()
	b := NewBus(WithLogger(logger))

	done := make(chan error, 1)
	go func() { done <- b.WaitForService(context.Background(), protocol.ServiceStartCompetition) }()

	// Unrelated services must not release the waiter.
	b.Advertise("/unrelated", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	select {
	case <-done:
		t.Fatal("WaitForService returned before the service was advertised")
	case <-time.After(50 * time.Millisecond):
	}

	b.Advertise(protocol.ServiceStartCompetition, func(context.Context, json.RawMessage) (any, error) {
		return protocol.TriggerResponse{Success: true}, nil
	})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForService did not return after advertise")
	}
}

func TestBusWaitForServiceHonoursContext(t *testing.T) {
	logger, _ := newTestLogger()
	b := NewBus(WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.WaitForService(ctx, protocol.ServiceStartCompetition)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
