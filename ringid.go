package ring

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewRingID returns a UUIDv7 identifying a ring in logs and metrics.
//
// Panics if the system random number generator fails.
func NewRingID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
