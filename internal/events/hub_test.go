package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cellnode/internal/transport"
)

func TestHubRingBufferKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for i := range 5 {
		h.Publish(TypeNode, map[string]int{"n": i})
	}

	snap := h.SnapshotSince(0)
	require.Len(t, snap, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{snap[0].ID, snap[1].ID, snap[2].ID})
	assert.JSONEq(t, `{"n":4}`, string(snap[2].Data))
}

func TestHubSnapshotSince(t *testing.T) {
	h := NewHub(10)
	for range 4 {
		h.Publish(TypeNode, nil)
	}

	snap := h.SnapshotSince(2)
	require.Len(t, snap, 2)
	assert.Equal(t, int64(3), snap[0].ID)
	assert.Equal(t, json.RawMessage("{}"), snap[0].Data)
	assert.Empty(t, h.SnapshotSince(4))
}

func TestHubRecordEnvelope(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.Record(transport.Envelope{
		ID:      "abc",
		Seq:     1,
		Channel: "/ariac/current_score",
		At:      at,
		Payload: json.RawMessage(`{"data":3}`),
	})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeMessage, ev.Type)
		assert.Equal(t, "/ariac/current_score", ev.Channel)
		assert.Equal(t, at, ev.At)
		assert.JSONEq(t, `{"data":3}`, string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(4)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range 500 {
			h.Publish(TypeNode, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	cancel() // idempotent

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}
