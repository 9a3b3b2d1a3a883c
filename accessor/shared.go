package accessor

import (
	"github.com/stephnangue/tokenvault/logger"
)

// Shared is the process-wide accessor variant: one partition map reused by
// every cache instance it is handed to. It is an explicitly constructed
// handle, never ambient global state; its lifetime is the lifetime of the
// process and it has no teardown.
type Shared struct {
	*InMemory
}

// NewShared constructs a shared accessor handle. Construct it once and
// pass it to each client's cache; all of them will read and write the same
// partitions.
func NewShared(conf map[string]string, log logger.Logger) (*Shared, error) {
	inner, err := NewInMemory(conf, log)
	if err != nil {
		return nil, err
	}
	return &Shared{InMemory: inner}, nil
}
