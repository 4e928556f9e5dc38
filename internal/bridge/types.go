package bridge

// DefaultMaxBodyBytes limits the size of an ingress message.
const DefaultMaxBodyBytes int64 = 1 << 20

// Config holds bridge server configuration.
type Config struct {
	Listen       string
	MaxBodyBytes int64
	// Token, when set, is required as a bearer token on every /v1 and
	// /services route.
	Token string
}

// PublishResponse is returned when a message was queued.
type PublishResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}

// ChannelsResponse is returned by GET /v1/channels.
type ChannelsResponse struct {
	Inbound []string `json:"inbound"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	Subscribers   int    `json:"subscribers"`
}
