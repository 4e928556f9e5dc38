package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/cellnode/internal/protocol"
	"github.com/mattjoyce/cellnode/internal/transport"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    s.ingress.Depth(),
		Subscribers:   s.hub.Subscribers(),
	})
}

// handleChannels handles GET /v1/channels.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ChannelsResponse{Inbound: protocol.InboundChannels()})
}

// handlePublish handles POST /v1/channels/{channel...}.
// The body is queued as-is; decoding happens on the dispatch loop.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	channel := "/" + chi.URLParam(r, "*")
	if channel == "/" {
		s.respondIngress(w, http.StatusBadRequest, ErrorResponse{Error: "missing channel"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		s.respondIngress(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read request body"})
		return
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		s.respondIngress(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		return
	}
	if !json.Valid(body) {
		s.respondIngress(w, http.StatusBadRequest, ErrorResponse{Error: "body is not valid JSON"})
		return
	}

	if err := s.ingress.PublishRaw(channel, json.RawMessage(body)); err != nil {
		if errors.Is(err, transport.ErrQueueFull) {
			s.logger.Warn("bridge message dropped", "channel", channel, "error", err)
			s.respondIngress(w, http.StatusServiceUnavailable, ErrorResponse{Error: "queue full"})
			return
		}
		s.logger.Error("failed to publish bridge message", "channel", channel, "error", err)
		s.respondIngress(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to publish"})
		return
	}

	s.respondIngress(w, http.StatusAccepted, PublishResponse{Status: "queued", Channel: channel})
}

func (s *Server) respondIngress(w http.ResponseWriter, status int, data any) {
	if s.metrics != nil {
		s.metrics.ObserveBridgeRequest(status)
	}
	s.writeJSON(w, status, data)
}

// handleServiceExists handles GET /services/{name...}.
func (s *Server) handleServiceExists(w http.ResponseWriter, r *http.Request) {
	name := "/" + chi.URLParam(r, "*")
	if !s.services.Exists(r.Context(), name) {
		s.writeError(w, http.StatusNotFound, "service not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleServiceCall handles POST /services/{name...}.
func (s *Server) handleServiceCall(w http.ResponseWriter, r *http.Request) {
	name := "/" + chi.URLParam(r, "*")

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		s.writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}

	var resp json.RawMessage
	if err := s.services.Call(r.Context(), name, json.RawMessage(body), &resp); err != nil {
		if errors.Is(err, transport.ErrServiceNotFound) {
			s.writeError(w, http.StatusNotFound, "service not found")
			return
		}
		s.logger.Error("service call failed", "service", name, "error", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}
