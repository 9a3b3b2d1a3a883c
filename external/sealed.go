package external

import (
	"context"
	"fmt"

	wrapping "github.com/openbao/go-kms-wrapping/v2"
	aeadwrapper "github.com/openbao/go-kms-wrapping/wrappers/aead/v2"
	"google.golang.org/protobuf/proto"
)

// Sealed wraps a Serializer with authenticated encryption so the cache
// blob can live in untrusted storage. The sealed form is a serialized
// wrapping.BlobInfo carrying the ciphertext, IV and key metadata.
type Sealed struct {
	inner   Serializer
	wrapper wrapping.Wrapper
}

// NewSealed builds a sealed serializer over any key-management wrapper.
func NewSealed(inner Serializer, wrapper wrapping.Wrapper) *Sealed {
	return &Sealed{inner: inner, wrapper: wrapper}
}

// NewSealedAESGCM builds a sealed serializer from a raw AES key (16, 24 or
// 32 bytes).
func NewSealedAESGCM(inner Serializer, key []byte) (*Sealed, error) {
	w := aeadwrapper.NewWrapper()
	if err := w.SetAesGcmKeyBytes(key); err != nil {
		return nil, fmt.Errorf("configuring aead wrapper: %w", err)
	}
	return NewSealed(inner, w), nil
}

// Seal marshals the inner cache and encrypts the result.
func (s *Sealed) Seal(ctx context.Context) ([]byte, error) {
	plain, err := s.inner.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling cache: %w", err)
	}
	blob, err := s.wrapper.Encrypt(ctx, plain)
	if err != nil {
		return nil, fmt.Errorf("sealing cache: %w", err)
	}
	sealed, err := proto.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encoding sealed blob: %w", err)
	}
	return sealed, nil
}

// Open decrypts a sealed blob and loads it into the inner cache.
func (s *Sealed) Open(ctx context.Context, sealed []byte) error {
	blob := &wrapping.BlobInfo{}
	if err := proto.Unmarshal(sealed, blob); err != nil {
		return fmt.Errorf("decoding sealed blob: %w", err)
	}
	plain, err := s.wrapper.Decrypt(ctx, blob)
	if err != nil {
		return fmt.Errorf("opening sealed cache: %w", err)
	}
	return s.inner.Unmarshal(plain)
}
