package ring

import (
	"errors"
)

var (
	ErrorTemplateBadAddress = "bad address %q: %w"
	ErrorTemplateNoRing     = "no ring named %q"
)

var (
	ErrorPoolExhausted  = errors.New("pool exhausted")
	ErrorTokenNotReady  = errors.New("token not ready")
	ErrorTokenBusy      = errors.New("token already has a request in flight")
	ErrorRingClosed     = errors.New("ring closed")
	ErrorNoAddresses    = errors.New("no remote addresses")
	ErrorQueueFull      = errors.New("event loop queue full")
	ErrorLoopStopped    = errors.New("event loop stopped")
	ErrorUnknownNetwork = errors.New("network must be tcp or udp")
	ErrorUnknownCharset = errors.New("unknown charset")
	ErrorInvalidToken   = errors.New("invalid token id")
	ErrorInvalidConfig  = errors.New("invalid configuration")
)
