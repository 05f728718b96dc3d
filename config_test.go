package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewConfigDefaults(t *testing.T) {
	var cfg = NewConfig(NETWORK_TCP)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"localhost:8080"}, cfg.Addresses)
	assert.Equal(t, DefaultLoops(), cfg.Loops)
	assert.Equal(t, DefaultLoops()*8, cfg.Capacity)
	assert.Equal(t, 1500*time.Millisecond, cfg.ConnectTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.ResponseTimeout)
	assert.Equal(t, 4096, cfg.BufferSize)
	assert.Equal(t, 1024, cfg.RegsPerIteration)
	assert.Equal(t, 4096, cfg.RegisterQueueLength)

	var udp = NewConfig(NETWORK_UDP)
	assert.Equal(t, 256, udp.RegsPerIteration)
	assert.Equal(t, 1024, udp.RegisterQueueLength)
}

func TestConfigValidate(t *testing.T) {
	var cases = []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"network", func(c *Config) { c.Network = "unix" }, ErrorUnknownNetwork},
		{"addresses", func(c *Config) { c.Addresses = nil }, ErrorNoAddresses},
		{"capacity", func(c *Config) { c.Capacity = 0 }, ErrorInvalidConfig},
		{"loops", func(c *Config) { c.Loops = 0 }, ErrorInvalidConfig},
		{"connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, ErrorInvalidConfig},
		{"response timeout", func(c *Config) { c.ResponseTimeout = -time.Second }, ErrorInvalidConfig},
		{"buffer", func(c *Config) { c.BufferSize = 0 }, ErrorInvalidConfig},
		{"attempts", func(c *Config) { c.AcquireAttempts = 0 }, ErrorInvalidConfig},
		{"poll", func(c *Config) { c.PollTimeout = time.Microsecond }, ErrorInvalidConfig},
		{"queues", func(c *Config) { c.TimeoutQueueLength = 0 }, ErrorInvalidConfig},
		{"events", func(c *Config) { c.EpollEvents = 0 }, ErrorInvalidConfig},
		{"wheels", func(c *Config) { c.Wheels = 0 }, ErrorInvalidConfig},
		{"wheel tick", func(c *Config) { c.WheelTick = 500 * time.Microsecond }, ErrorInvalidConfig},
		{"callbacks", func(c *Config) { c.CallbackThreads = 0 }, ErrorInvalidConfig},
		{"logger", func(c *Config) { c.Logger = nil }, ErrorInvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg = NewConfig(NETWORK_TCP)
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}

	var udp = NewConfig(NETWORK_UDP)
	udp.ConnectTimeout = 0
	assert.NoError(t, udp.Validate())
}

func TestSourceConfig(t *testing.T) {
	var sc = NewSourceConfig("main")
	var cfg = sc.Config()
	assert.Equal(t, NETWORK_TCP, cfg.Network)
	assert.Equal(t, []string{DEFAULT_ADDRESSES}, cfg.Addresses)
	assert.Equal(t, DEFAULT_CONNECT_TIMEOUT, cfg.ConnectTimeout)

	sc = SourceConfig{
		Name:            "udp",
		Network:         NETWORK_UDP,
		Addresses:       "10.0.0.1:53  10.0.0.2:53",
		Loops:           3,
		ResponseTimeout: 200,
		BufferSize:      512,
		Charset:         "iso-8859-1",
	}
	cfg = sc.Config()
	assert.Equal(t, NETWORK_UDP, cfg.Network)
	assert.Equal(t, []string{"10.0.0.1:53", "10.0.0.2:53"}, cfg.Addresses)
	assert.Equal(t, 3, cfg.Loops)
	assert.Equal(t, 3, cfg.Wheels)
	assert.Equal(t, 24, cfg.Capacity)
	assert.Equal(t, 200*time.Millisecond, cfg.ResponseTimeout)
	assert.Equal(t, 512, cfg.BufferSize)
	assert.Equal(t, "iso-8859-1", cfg.Charset)
	assert.Equal(t, 256, cfg.RegsPerIteration)
}

func TestParseAddresses(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, ParseAddresses(" a:1\tb:2 \n"))
	assert.Empty(t, ParseAddresses("   "))
}

func TestResolveAddress(t *testing.T) {
	var sa, family, err = resolveAddress("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, unix.AF_INET, family)
	var v4 = sa.(*unix.SockaddrInet4)
	assert.Equal(t, 8080, v4.Port)
	assert.Equal(t, [4]byte{127, 0, 0, 1}, v4.Addr)

	sa, family, err = resolveAddress("[::1]:53")
	require.NoError(t, err)
	assert.Equal(t, unix.AF_INET6, family)
	assert.Equal(t, 53, sa.(*unix.SockaddrInet6).Port)

	for _, bad := range []string{"127.0.0.1", "127.0.0.1:http", "127.0.0.1:0", "127.0.0.1:70000"} {
		_, _, err = resolveAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "connect", ERROR_CONNECT.String())
	assert.Equal(t, "connect timeout", TIMEOUT_CONNECT.String())
	assert.Equal(t, "READY", STATE_READY.String())
}
