package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gotcp/ring"
)

const (
	DEFAULT_WORKERS  = 8
	DEFAULT_DURATION = "10s"
	DEFAULT_PAYLOAD  = "ping\n"
)

// LoadConfig is the shape of a ringload config file.
type LoadConfig struct {
	Source ring.SourceConfig `yaml:"source" json:"source"`

	Workers     int    `yaml:"workers" json:"workers"`
	Requests    int64  `yaml:"requests" json:"requests"`
	Duration    string `yaml:"duration" json:"duration"`
	Payload     string `yaml:"payload" json:"payload"`
	Ammo        string `yaml:"ammo" json:"ammo"`
	Hex         bool   `yaml:"hex" json:"hex"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	DB          string `yaml:"db" json:"db"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
}

func NewLoadConfig() *LoadConfig {
	return &LoadConfig{
		Source:   ring.NewSourceConfig("default"),
		Workers:  DEFAULT_WORKERS,
		Duration: DEFAULT_DURATION,
		Payload:  DEFAULT_PAYLOAD,
		LogLevel: "info",
	}
}

// ReadConfig loads a config file on top of the defaults
func ReadConfig(path string) (*LoadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := NewLoadConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *LoadConfig) Validate() error {
	if c.Source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Requests < 0 {
		return fmt.Errorf("requests must not be negative")
	}
	d, err := c.RunDuration()
	if err != nil {
		return err
	}
	if d == 0 && c.Requests == 0 {
		return fmt.Errorf("either duration or requests must be set")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return c.Source.Config().Validate()
}

// RunDuration is zero when the run is bounded by requests only.
func (c *LoadConfig) RunDuration() (time.Duration, error) {
	if c.Duration == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Duration)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", c.Duration, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	return d, nil
}

func (c *LoadConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func bindFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Config file (.yaml, .yml or .json)")
	flags.String("name", "default", "Source name")
	flags.StringP("network", "n", ring.NETWORK_TCP, "Network (tcp/udp)")
	flags.StringP("addresses", "a", ring.DEFAULT_ADDRESSES, "Space separated host:port list")
	flags.Int("capacity", 0, "Number of connections")
	flags.Int("loops", 0, "Number of event loops")
	flags.Duration("connect-timeout", ring.DEFAULT_CONNECT_TIMEOUT, "Connect timeout")
	flags.Duration("response-timeout", ring.DEFAULT_RESPONSE_TIMEOUT, "Response timeout")
	flags.String("charset", ring.DEFAULT_CHARSET, "Response charset")
	flags.IntP("workers", "w", DEFAULT_WORKERS, "Concurrent samplers")
	flags.Int64P("requests", "r", 0, "Stop after this many requests")
	flags.StringP("duration", "d", DEFAULT_DURATION, "Stop after this long")
	flags.StringP("payload", "p", DEFAULT_PAYLOAD, "Request payload")
	flags.String("ammo", "", "Line oriented payload file")
	flags.Bool("hex", false, "Payloads are hex encoded")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("db", "", "Save the run summary to this SQLite database")
	flags.String("log-level", "info", "Log level (debug/info/warn/error)")
}

// applyFlags overrides c with every flag set on the command line.
func applyFlags(c *LoadConfig, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "name":
			c.Source.Name, _ = flags.GetString(f.Name)
		case "network":
			c.Source.Network, _ = flags.GetString(f.Name)
		case "addresses":
			c.Source.Addresses, _ = flags.GetString(f.Name)
		case "capacity":
			c.Source.Capacity, _ = flags.GetInt(f.Name)
		case "loops":
			c.Source.Loops, _ = flags.GetInt(f.Name)
		case "connect-timeout":
			d, _ := flags.GetDuration(f.Name)
			c.Source.ConnectTimeout = int(d.Milliseconds())
		case "response-timeout":
			d, _ := flags.GetDuration(f.Name)
			c.Source.ResponseTimeout = int(d.Milliseconds())
		case "charset":
			c.Source.Charset, _ = flags.GetString(f.Name)
		case "workers":
			c.Workers, _ = flags.GetInt(f.Name)
		case "requests":
			c.Requests, _ = flags.GetInt64(f.Name)
		case "duration":
			c.Duration, _ = flags.GetString(f.Name)
		case "payload":
			c.Payload, _ = flags.GetString(f.Name)
		case "ammo":
			c.Ammo, _ = flags.GetString(f.Name)
		case "hex":
			c.Hex, _ = flags.GetBool(f.Name)
		case "metrics-addr":
			c.MetricsAddr, _ = flags.GetString(f.Name)
		case "db":
			c.DB, _ = flags.GetString(f.Name)
		case "log-level":
			c.LogLevel, _ = flags.GetString(f.Name)
		}
	})
}
