package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

// fakeController mimics the competition controller's HTTP service surface.
type fakeController struct {
	ready atomic.Bool
	calls atomic.Int32
	resp  protocol.TriggerResponse
}

func (f *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/services"+protocol.ServiceStartCompetition || !f.ready.Load() {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		f.calls.Add(1)
		var req protocol.TriggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestHTTPServiceClientExistsAndCall(t *testing.T) {
	ctrl := &fakeController{resp: protocol.TriggerResponse{Success: true, Message: "started"}}
	ctrl.ready.Store(true)
	srv := httptest.NewServer(ctrl)
	defer srv.Close()

	logger, _ := newTestLogger()
	c := NewHTTPServiceClient(srv.URL+"/", 10*time.Millisecond, time.Second, logger)
	ctx := context.Background()

	assert.True(t, c.Exists(ctx, protocol.ServiceStartCompetition))
	assert.False(t, c.Exists(ctx, protocol.ServiceDroneControl))

	var resp protocol.TriggerResponse
	require.NoError(t, c.Call(ctx, protocol.ServiceStartCompetition, protocol.TriggerRequest{}, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "started", resp.Message)
	assert.Equal(t, int32(1), ctrl.calls.Load())
}

func TestHTTPServiceClientWaitForService(t *testing.T) {
	ctrl := &fakeController{}
	srv := httptest.NewServer(ctrl)
	defer srv.Close()

	logger, _ := newTestLogger()
	c := NewHTTPServiceClient(srv.URL, 5*time.Millisecond, time.Second, logger)

	go func() {
		time.Sleep(50 * time.Millisecond)
		ctrl.ready.Store(true)
	}()

	start := time.Now()
	require.NoError(t, c.WaitForService(context.Background(), protocol.ServiceStartCompetition))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestHTTPServiceClientWaitForServiceCancelled(t *testing.T) {
	srv := httptest.NewServer(&fakeController{})
	defer srv.Close()

	logger, _ := newTestLogger()
	c := NewHTTPServiceClient(srv.URL, 5*time.Millisecond, time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitForService(ctx, protocol.ServiceStartCompetition), context.DeadlineExceeded)
}

func TestHTTPServiceClientCallErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/services/boom", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "controller not in go state", http.StatusConflict)
	})
	mux.HandleFunc("/services/garbage", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger, _ := newTestLogger()
	c := NewHTTPServiceClient(srv.URL, 0, time.Second, logger)
	ctx := context.Background()

	err := c.Call(ctx, "/missing", protocol.TriggerRequest{}, &protocol.TriggerResponse{})
	assert.True(t, errors.Is(err, ErrServiceNotFound))

	err = c.Call(ctx, "boom", protocol.TriggerRequest{}, &protocol.TriggerResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 409")
	assert.Contains(t, err.Error(), "controller not in go state")

	err = c.Call(ctx, "/garbage", protocol.TriggerRequest{}, &protocol.TriggerResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestHTTPServiceClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(&fakeController{})
	url := srv.URL
	srv.Close()

	logger, _ := newTestLogger()
	c := NewHTTPServiceClient(url, 0, 200*time.Millisecond, logger)

	assert.False(t, c.Exists(context.Background(), protocol.ServiceStartCompetition))
	assert.Error(t, c.Call(context.Background(), protocol.ServiceStartCompetition, protocol.TriggerRequest{}, nil))
}
