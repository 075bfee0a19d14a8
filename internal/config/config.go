package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidationError is a fatal configuration problem, surfaced before any API
// call is made.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Duration is a time.Duration that unmarshals from yaml strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds everything a migration run needs.
type Config struct {
	URL       string `yaml:"url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClusterID string `yaml:"clusterID"`
	Insecure  bool   `yaml:"insecure"`

	Workers  int      `yaml:"workers"`
	Timeout  Duration `yaml:"timeout"`
	StopWait Duration `yaml:"stopWait"`
}

// Environment variables overlaying the config file. Credentials in
// particular should not have to live in the yaml.
const (
	envURL       = "PORTAINER_URL"
	envUsername  = "PORTAINER_USERNAME"
	envPassword  = "PORTAINER_PASSWORD"
	envClusterID = "PORTAINER_CLUSTER_ID"
)

// Load reads the yaml config file at path, overlays PORTAINER_* environment
// variables (a .env file is honored if present, with the real environment
// winning), applies defaults, and validates. path may be empty when the
// environment supplies everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ValidationError{Field: "config", Msg: err.Error()}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ValidationError{Field: "config", Msg: fmt.Sprintf("parsing %s: %v", path, err)}
		}
	}

	// Best effort: no .env file is fine.
	_ = godotenv.Load()

	overlay(&cfg.URL, envURL)
	overlay(&cfg.Username, envUsername)
	overlay(&cfg.Password, envPassword)
	overlay(&cfg.ClusterID, envClusterID)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
	if c.StopWait == 0 {
		c.StopWait = Duration(10 * time.Second)
	}
}

func (c *Config) validate() error {
	switch {
	case c.URL == "":
		return &ValidationError{Field: "url", Msg: "dashboard URL is required"}
	case c.Username == "":
		return &ValidationError{Field: "username", Msg: "username is required"}
	case c.Password == "":
		return &ValidationError{Field: "password", Msg: "password is required"}
	case c.ClusterID == "":
		return &ValidationError{Field: "clusterID", Msg: "target cluster ID is required"}
	case c.Workers < 0:
		return &ValidationError{Field: "workers", Msg: "must be positive"}
	}
	return nil
}
