package helper

import (
	"crypto/rand"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/oklog/ulid"
)

// CorrelationID returns a ULID used to correlate the log lines of one
// cache operation.
func CorrelationID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// RandomSecret generates an opaque base62 secret of the given length.
// It is used by tests and fixtures, never for real credentials.
func RandomSecret(length int) string {
	s, err := base62.Random(length)
	if err != nil {
		// crypto/rand failure is not recoverable here
		panic(err)
	}
	return s
}
