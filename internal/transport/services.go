package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

// Advertise makes an in-process service callable through the Bus.
func (b *Bus) Advertise(name string, h ServiceHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services[name] = h
	close(b.advertised)
	b.advertised = make(chan struct{})
}

// Exists reports whether name is currently advertised.
func (b *Bus) Exists(_ context.Context, name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.services[name]
	return ok
}

// WaitForService blocks until name is advertised or ctx is done.
// There is no timeout: the controller may start long after this node.
func (b *Bus) WaitForService(ctx context.Context, name string) error {
	for {
		b.mu.RLock()
		_, ok := b.services[name]
		changed := b.advertised
		b.mu.RUnlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Call invokes an advertised service on the caller's goroutine and decodes
// its answer into resp.
func (b *Bus) Call(ctx context.Context, name string, req, resp any) error {
	b.mu.RLock()
	h, ok := b.services[name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("call %s: %w", name, ErrServiceNotFound)
	}

	payload, err := protocol.Encode(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	out, err := h(ctx, payload)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	raw, err := protocol.Encode(out)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("call %s: decode response: %w", name, err)
	}
	return nil
}
