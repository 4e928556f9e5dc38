package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

// bridgePublisher publishes onto a running node's bus through its bridge.
// Publish has no error return, so the first failure is kept in err.
type bridgePublisher struct {
	baseURL string
	token   string
	client  *http.Client
	err     error
}

func newBridgePublisher(baseURL, token string) *bridgePublisher {
	return &bridgePublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *bridgePublisher) Publish(channel string, msg any) {
	if p.err != nil {
		return
	}
	p.err = p.publish(channel, msg)
}

func (p *bridgePublisher) publish(channel string, msg any) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/channels"+channel, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("publish %s: bridge answered %d: %s", channel, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
