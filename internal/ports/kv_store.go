package ports

import "context"

// KVStore persists opaque values under string keys. Get returns
// domain.ErrKeyNotFound when nothing is stored under key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
