package testutil

import (
	"time"

	"github.com/narumiruna/lazyopenai"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery enabled,
// suitable for tests.
func NewTestRegistry(tools ...lazyopenai.Tool) *lazyopenai.Registry {
	reg := lazyopenai.NewRegistry(
		lazyopenai.WithDefaultTimeout(30*time.Second),
		lazyopenai.WithRecoverPanics(true),
	)
	reg.Register(tools...)
	return reg
}
