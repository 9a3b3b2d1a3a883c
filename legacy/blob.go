package legacy

import (
	"context"
	"os"
	"sync"
)

// BlobStore holds the legacy cache's single serialized blob. Implementations
// need no internal consistency beyond whole-blob read/write; JSONBridge
// serializes access on top.
type BlobStore interface {
	// Load returns the current blob. A store that has never been written
	// returns (nil, nil).
	Load(ctx context.Context) ([]byte, error)
	// Store replaces the blob.
	Store(ctx context.Context, blob []byte) error
}

// InMemoryBlob is a BlobStore backed by a byte slice. Useful for tests and
// for hosts that persist the blob themselves around engine calls.
type InMemoryBlob struct {
	mu   sync.Mutex
	blob []byte
}

func (b *InMemoryBlob) Load(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blob == nil {
		return nil, nil
	}
	out := make([]byte, len(b.blob))
	copy(out, b.blob)
	return out, nil
}

func (b *InMemoryBlob) Store(ctx context.Context, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blob = make([]byte, len(blob))
	copy(b.blob, blob)
	return nil
}

// FileBlob persists the legacy blob to one file with owner-only
// permissions.
type FileBlob struct {
	Path string
}

func (b *FileBlob) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (b *FileBlob) Store(ctx context.Context, blob []byte) error {
	tmp := b.Path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, b.Path)
}
