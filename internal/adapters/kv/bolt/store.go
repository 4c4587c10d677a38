package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/ports"
	bolt "go.etcd.io/bbolt"
)

const (
	dbFileMode   = 0o600
	dbDirMode    = 0o700
	readTimeout  = time.Second
	writeTimeout = 2 * time.Second
)

var bucketName = []byte("kv")

// Store keeps values in a single bucket of a bbolt file. The database is
// opened per operation so a second nexus process (history show while the chat
// screen is open) only waits for the file lock instead of failing.
type Store struct {
	path string
}

var _ ports.KVStore = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("bolt path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve bolt path: %w", err)
	}

	return &Store{path: filepath.Clean(absPath)}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrKeyNotFound
	}

	db, err := s.open(readTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var value []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return domain.ErrKeyNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return domain.ErrKeyNotFound
		}
		// v is only valid for the lifetime of the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := s.open(writeTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if err := b.Put([]byte(key), value); err != nil {
			return fmt.Errorf("put %q: %w", key, err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	db, err := s.open(writeTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) open(timeout time.Duration) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dbDirMode); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}

	db, err := bolt.Open(s.path, dbFileMode, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	return db, nil
}
