package ring

import (
	"fmt"
	"runtime"
	"time"
)

const (
	NETWORK_TCP = "tcp"
	NETWORK_UDP = "udp"
)

const (
	NONE = -1
)

const (
	DEFAULT_CONNECT_TIMEOUT             = 1500 * time.Millisecond
	DEFAULT_RESPONSE_TIMEOUT            = 750 * time.Millisecond
	DEFAULT_BUFFER_SIZE                 = 4096
	DEFAULT_ADDRESSES                   = "localhost:8080"
	DEFAULT_CHARSET                     = "utf-8"
	DEFAULT_ACQUIRE_ATTEMPTS            = 2
	DEFAULT_POLL_TIMEOUT                = 10 * time.Millisecond
	DEFAULT_REGS_PER_ITERATION          = 1024
	DEFAULT_DATAGRAM_REGS_PER_ITERATION = 256
	DEFAULT_TIMEOUT_QUEUE_LENGTH        = 8192
	DEFAULT_EPOLL_EVENTS                = 4096
	DEFAULT_WHEEL_TICK                  = time.Millisecond
	DEFAULT_WHEEL_SIZE                  = 512
	DEFAULT_STATS_INTERVAL              = time.Second
	DEFAULT_CALLBACK_QUEUE_LENGTH       = 4096
)

const (
	RESPONSE_CODE_OK              = "200"
	RESPONSE_CODE_BAD_GATEWAY     = "502"
	RESPONSE_CODE_GATEWAY_TIMEOUT = "504"
)

// DefaultLoops is a quarter of the available processors plus one.
func DefaultLoops() int {
	return runtime.NumCPU()/4 + 1
}

// Config holds the settings of a [*Ring].
//
// Use [NewConfig] to get sensible defaults, then override the fields you need
// before passing the config to [New]. A config must not be mutated once a
// ring has been built from it.
type Config struct {
	// Network is either "tcp" (stream variant) or "udp" (datagram variant).
	Network string

	// Addresses lists the remote endpoints as host:port. Tokens are bound
	// to them round-robin.
	Addresses []string

	// Capacity is the number of tokens, hence of connections.
	Capacity int

	// Loops is the number of event loops.
	Loops int

	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration

	// BufferSize sizes the loop scratch buffer and the socket buffers.
	BufferSize int

	// Charset names the encoding responses are decoded from.
	Charset string

	// AcquireAttempts bounds the slot claims of a single [Ring.Acquire].
	AcquireAttempts int

	// PollTimeout bounds a single epoll wait.
	PollTimeout time.Duration

	// RegsPerIteration bounds the queue entries drained per loop iteration.
	// A wakeup is issued once half of it is queued.
	RegsPerIteration int

	RegisterQueueLength int
	TimeoutQueueLength  int
	EpollEvents         int

	// Wheels is the number of timeout wheel shards.
	Wheels int

	// WheelTick is the timer resolution, at least 1ms.
	WheelTick time.Duration
	WheelSize int

	// StatsInterval is the period of the ringStats log line; zero disables it.
	StatsInterval time.Duration

	// CallbackThreads and CallbackQueueLength size the pool that runs
	// OnReset and OnError outside of the event loops.
	CallbackThreads     int
	CallbackQueueLength int

	Logger        SLogger
	ErrClassifier ErrClassifier
	TimeNow       func() time.Time
}

// NewConfig returns a [*Config] for network with the defaults applied.
func NewConfig(network string) *Config {
	var loops = DefaultLoops()
	var regs = DEFAULT_REGS_PER_ITERATION
	if network == NETWORK_UDP {
		regs = DEFAULT_DATAGRAM_REGS_PER_ITERATION
	}
	return &Config{
		Network:             network,
		Addresses:           ParseAddresses(DEFAULT_ADDRESSES),
		Capacity:            loops * 8,
		Loops:               loops,
		ConnectTimeout:      DEFAULT_CONNECT_TIMEOUT,
		ResponseTimeout:     DEFAULT_RESPONSE_TIMEOUT,
		BufferSize:          DEFAULT_BUFFER_SIZE,
		Charset:             DEFAULT_CHARSET,
		AcquireAttempts:     DEFAULT_ACQUIRE_ATTEMPTS,
		PollTimeout:         DEFAULT_POLL_TIMEOUT,
		RegsPerIteration:    regs,
		RegisterQueueLength: regs * 4,
		TimeoutQueueLength:  DEFAULT_TIMEOUT_QUEUE_LENGTH,
		EpollEvents:         DEFAULT_EPOLL_EVENTS,
		Wheels:              loops,
		WheelTick:           DEFAULT_WHEEL_TICK,
		WheelSize:           DEFAULT_WHEEL_SIZE,
		StatsInterval:       DEFAULT_STATS_INTERVAL,
		CallbackThreads:     1,
		CallbackQueueLength: DEFAULT_CALLBACK_QUEUE_LENGTH,
		Logger:              DefaultSLogger(),
		ErrClassifier:       DefaultErrClassifier,
		TimeNow:             time.Now,
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Network != NETWORK_TCP && c.Network != NETWORK_UDP:
		return fmt.Errorf("%w: %q", ErrorUnknownNetwork, c.Network)
	case len(c.Addresses) == 0:
		return ErrorNoAddresses
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrorInvalidConfig)
	case c.Loops <= 0:
		return fmt.Errorf("%w: loops must be positive", ErrorInvalidConfig)
	case c.Network == NETWORK_TCP && c.ConnectTimeout <= 0:
		return fmt.Errorf("%w: connect timeout must be positive", ErrorInvalidConfig)
	case c.ResponseTimeout <= 0:
		return fmt.Errorf("%w: response timeout must be positive", ErrorInvalidConfig)
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size must be positive", ErrorInvalidConfig)
	case c.AcquireAttempts <= 0:
		return fmt.Errorf("%w: acquire attempts must be positive", ErrorInvalidConfig)
	case c.PollTimeout < time.Millisecond:
		return fmt.Errorf("%w: poll timeout below 1ms", ErrorInvalidConfig)
	case c.RegsPerIteration <= 0 || c.RegisterQueueLength <= 0 || c.TimeoutQueueLength <= 0:
		return fmt.Errorf("%w: queue sizes must be positive", ErrorInvalidConfig)
	case c.EpollEvents <= 0:
		return fmt.Errorf("%w: epoll events must be positive", ErrorInvalidConfig)
	case c.Wheels <= 0 || c.WheelSize <= 0:
		return fmt.Errorf("%w: wheel settings must be positive", ErrorInvalidConfig)
	case c.WheelTick < time.Millisecond:
		return fmt.Errorf("%w: wheel tick below 1ms", ErrorInvalidConfig)
	case c.CallbackThreads <= 0 || c.CallbackQueueLength <= 0:
		return fmt.Errorf("%w: callback pool settings must be positive", ErrorInvalidConfig)
	case c.Logger == nil || c.ErrClassifier == nil || c.TimeNow == nil:
		return fmt.Errorf("%w: logger, classifier and clock are required", ErrorInvalidConfig)
	}
	return nil
}
