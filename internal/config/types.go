package config

import "time"

// Config represents the complete cellnode configuration.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Transport TransportConfig `yaml:"transport"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Journal   JournalConfig   `yaml:"journal"`

	// SourcePath and SourceHash identify the file the config came from.
	// Both are empty when only defaults and environment were used.
	SourcePath string `yaml:"-"`
	SourceHash string `yaml:"-"`
}

// NodeConfig defines core node settings.
type NodeConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level" env:"CELLNODE_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"CELLNODE_LOG_FORMAT"`

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile       string `yaml:"log_file" env:"CELLNODE_LOG_FILE"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
}

// TransportConfig defines the message bus and the remote service endpoint.
type TransportConfig struct {
	QueueSize    int           `yaml:"queue_size" env:"CELLNODE_QUEUE_SIZE"`
	ServicesURL  string        `yaml:"services_url" env:"CELLNODE_SERVICES_URL"`
	PollInterval time.Duration `yaml:"poll_interval" env:"CELLNODE_SERVICES_POLL_INTERVAL"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
}

// BridgeConfig defines the HTTP bridge settings.
type BridgeConfig struct {
	Enabled      bool   `yaml:"enabled" env:"CELLNODE_BRIDGE_ENABLED"`
	Listen       string `yaml:"listen" env:"CELLNODE_BRIDGE_LISTEN"`
	Token        string `yaml:"token" env:"CELLNODE_BRIDGE_TOKEN"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	EventBuffer  int    `yaml:"event_buffer"`
}

// JournalConfig defines the event journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" env:"CELLNODE_JOURNAL_ENABLED"`
	Path    string `yaml:"path" env:"CELLNODE_JOURNAL_PATH"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Node: NodeConfig{
			Name:          "cellnode",
			LogLevel:      "info",
			LogFormat:     "json",
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
		},
		Transport: TransportConfig{
			QueueSize:    100,
			ServicesURL:  "http://127.0.0.1:8090",
			PollInterval: 500 * time.Millisecond,
			CallTimeout:  30 * time.Second,
		},
		Bridge: BridgeConfig{
			Enabled:      true,
			Listen:       "127.0.0.1:8081",
			MaxBodyBytes: 1 << 20,
			EventBuffer:  256,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "./data/journal.db",
		},
	}
}
