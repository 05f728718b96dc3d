package ring

import (
	"log/slog"
	"sync"
	"time"
)

// SourceConfig describes one named ring as it appears in a config file.
// Durations are in milliseconds.
type SourceConfig struct {
	Name            string `yaml:"name" json:"name"`
	Network         string `yaml:"network" json:"network"`
	Addresses       string `yaml:"addresses" json:"addresses"`
	Capacity        int    `yaml:"capacity" json:"capacity"`
	Loops           int    `yaml:"loops" json:"loops"`
	ConnectTimeout  int    `yaml:"connect_timeout" json:"connect_timeout"`
	ResponseTimeout int    `yaml:"response_timeout" json:"response_timeout"`
	BufferSize      int    `yaml:"buffer_size" json:"buffer_size"`
	Charset         string `yaml:"charset" json:"charset"`
	StatsInterval   int    `yaml:"stats_interval" json:"stats_interval"`
}

// NewSourceConfig returns the defaults for a ring named name.
func NewSourceConfig(name string) SourceConfig {
	var loops = DefaultLoops()
	return SourceConfig{
		Name:            name,
		Network:         NETWORK_TCP,
		Addresses:       DEFAULT_ADDRESSES,
		Capacity:        loops * 8,
		Loops:           loops,
		ConnectTimeout:  int(DEFAULT_CONNECT_TIMEOUT.Milliseconds()),
		ResponseTimeout: int(DEFAULT_RESPONSE_TIMEOUT.Milliseconds()),
		BufferSize:      DEFAULT_BUFFER_SIZE,
		Charset:         DEFAULT_CHARSET,
		StatsInterval:   int(DEFAULT_STATS_INTERVAL.Milliseconds()),
	}
}

// Config turns sc into an engine config. Zero fields keep the engine
// defaults.
func (sc SourceConfig) Config() *Config {
	var network = sc.Network
	if network == "" {
		network = NETWORK_TCP
	}
	var cfg = NewConfig(network)
	if sc.Addresses != "" {
		cfg.Addresses = ParseAddresses(sc.Addresses)
	}
	if sc.Loops > 0 {
		cfg.Loops = sc.Loops
		cfg.Wheels = sc.Loops
		cfg.Capacity = sc.Loops * 8
	}
	if sc.Capacity > 0 {
		cfg.Capacity = sc.Capacity
	}
	if sc.ConnectTimeout > 0 {
		cfg.ConnectTimeout = time.Duration(sc.ConnectTimeout) * time.Millisecond
	}
	if sc.ResponseTimeout > 0 {
		cfg.ResponseTimeout = time.Duration(sc.ResponseTimeout) * time.Millisecond
	}
	if sc.BufferSize > 0 {
		cfg.BufferSize = sc.BufferSize
	}
	if sc.Charset != "" {
		cfg.Charset = sc.Charset
	}
	if sc.StatsInterval > 0 {
		cfg.StatsInterval = time.Duration(sc.StatsInterval) * time.Millisecond
	}
	return cfg
}

// Source starts rings when a run begins and destroys them when it ends.
type Source struct {
	Registry *Registry
	Logger   SLogger

	// Configure, when set, adjusts every engine config before the ring is
	// built.
	Configure func(cfg *Config)

	OnReset OnResetEvent
	OnError OnErrorEvent

	lock  sync.Mutex
	names []string
}

func NewSource(registry *Registry, logger SLogger) *Source {
	if logger == nil {
		logger = DefaultSLogger()
	}
	return &Source{Registry: registry, Logger: logger}
}

// OnStart builds, registers and initializes the ring described by sc. When
// a ring is already registered under the name, that ring is returned.
func (s *Source) OnStart(sc SourceConfig) (*Ring, error) {
	if r := s.Registry.Get(sc.Name); r != nil {
		s.Logger.Warn("ringExists", slog.String("name", sc.Name), slog.String("ringId", r.Id))
		return r, nil
	}
	var cfg = sc.Config()
	cfg.Logger = s.Logger
	if s.Configure != nil {
		s.Configure(cfg)
	}
	var r, err = New(cfg)
	if err != nil {
		s.Logger.Error("ringFailed", slog.String("name", sc.Name), slog.Any("err", err))
		return nil, err
	}
	r.OnReset = s.OnReset
	r.OnError = s.OnError
	if !s.Registry.Register(sc.Name, r) {
		r.Destroy()
		return s.Registry.Get(sc.Name), nil
	}
	if err = r.Init(); err != nil {
		s.Registry.Remove(sc.Name)
		r.Destroy()
		return nil, err
	}
	s.lock.Lock()
	s.names = append(s.names, sc.Name)
	s.lock.Unlock()
	s.Logger.Info("ringRegistered", slog.String("name", sc.Name), slog.String("ringId", r.Id))
	return r, nil
}

// OnStop destroys every ring this source started.
func (s *Source) OnStop() {
	s.lock.Lock()
	var names = s.names
	s.names = nil
	s.lock.Unlock()
	for _, name := range names {
		if r := s.Registry.Remove(name); r != nil {
			r.Destroy()
			s.Logger.Info("ringUnregistered", slog.String("name", name), slog.String("ringId", r.Id))
		}
	}
}
