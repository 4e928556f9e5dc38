package competition

import "context"

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/mattjoyce/cellnode/internal/competition Publisher,ServiceClient

// Publisher sends a message on a channel, fire-and-forget.
type Publisher interface {
	Publish(channel string, msg any)
}

// ServiceClient performs request/response calls against the controller.
type ServiceClient interface {
	Exists(ctx context.Context, name string) bool
	WaitForService(ctx context.Context, name string) error
	Call(ctx context.Context, name string, req, resp any) error
}
