package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"github.com/caarlos0/env/v11"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from path, then applies environment overrides.
// An empty path searches the standard locations; finding nothing there is
// not an error and yields the defaults. An explicit path must exist.
func Load(path string) (*Config, error) {
	if path == "" {
		discovered, err := Discover()
		if err != nil {
			return nil, err
		}
		path = discovered
	}

	cfg := Defaults()
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover finds the config file by checking standard locations.
// Priority order: $CELLNODE_CONFIG, ~/.config/cellnode/config.yaml,
// /etc/cellnode/config.yaml, ./cellnode.yaml. It returns "" when none exist.
func Discover() (string, error) {
	if p := os.Getenv("CELLNODE_CONFIG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("CELLNODE_CONFIG points to a missing file: %w", err)
		}
		return p, nil
	}

	var candidates []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "cellnode", "config.yaml"))
	}
	candidates = append(candidates, "/etc/cellnode/config.yaml", "./cellnode.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

func loadFile(cfg *Config, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", absPath, err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	// Unmarshal over the defaults so omitted keys keep them.
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", absPath, err)
	}

	sum := blake3.Sum256(data)
	cfg.SourcePath = absPath
	cfg.SourceHash = hex.EncodeToString(sum[:])
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validation reports it where it matters.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	var errs []error

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Node.LogLevel] {
		errs = append(errs, fmt.Errorf("node.log_level must be one of: debug, info, warn, error (got %q)", cfg.Node.LogLevel))
	}
	if cfg.Node.LogFormat != "json" && cfg.Node.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("node.log_format must be json or text (got %q)", cfg.Node.LogFormat))
	}
	if cfg.Node.Name == "" {
		errs = append(errs, errors.New("node.name is required"))
	}
	if cfg.Node.LogFile != "" {
		if cfg.Node.LogMaxSizeMB <= 0 {
			errs = append(errs, errors.New("node.log_max_size_mb must be positive when node.log_file is set"))
		}
		if cfg.Node.LogMaxBackups < 0 {
			errs = append(errs, errors.New("node.log_max_backups must not be negative"))
		}
	}

	if cfg.Transport.QueueSize <= 0 {
		errs = append(errs, errors.New("transport.queue_size must be positive"))
	}
	if cfg.Transport.PollInterval <= 0 {
		errs = append(errs, errors.New("transport.poll_interval must be positive"))
	}
	if cfg.Transport.CallTimeout < 0 {
		errs = append(errs, errors.New("transport.call_timeout must not be negative"))
	}
	if u, err := url.Parse(cfg.Transport.ServicesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("transport.services_url must be an http(s) URL (got %q)", cfg.Transport.ServicesURL))
	}

	if cfg.Bridge.Enabled {
		if cfg.Bridge.Listen == "" {
			errs = append(errs, errors.New("bridge.listen is required when the bridge is enabled"))
		}
		if cfg.Bridge.MaxBodyBytes <= 0 {
			errs = append(errs, errors.New("bridge.max_body_bytes must be positive"))
		}
		if cfg.Bridge.EventBuffer <= 0 {
			errs = append(errs, errors.New("bridge.event_buffer must be positive"))
		}
		if matches := envVarPattern.FindStringSubmatch(cfg.Bridge.Token); len(matches) > 1 {
			errs = append(errs, fmt.Errorf("bridge.token: environment variable ${%s} is not set", matches[1]))
		}
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}

	return errors.Join(errs...)
}
