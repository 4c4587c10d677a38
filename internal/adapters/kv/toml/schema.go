package toml

import (
	"encoding/base64"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	currentSchemaVersion = 1
	encodingBase64       = "base64"
)

type fileSchema struct {
	Version int           `toml:"version"`
	Entries []entrySchema `toml:"entries"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported store schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type entrySchema struct {
	Key       string `toml:"key"`
	Value     string `toml:"value,multiline"`
	Encoding  string `toml:"encoding,omitempty"`
	UpdatedAt string `toml:"updated_at"`
}

// TOML strings must be valid UTF-8; anything else is stored base64 encoded.
func toEntry(key string, value []byte, now time.Time) entrySchema {
	entry := entrySchema{Key: key, UpdatedAt: now.UTC().Format(time.RFC3339)}
	if utf8.Valid(value) {
		entry.Value = string(value)
		return entry
	}

	entry.Value = base64.StdEncoding.EncodeToString(value)
	entry.Encoding = encodingBase64
	return entry
}

func (e entrySchema) bytes() ([]byte, error) {
	switch e.Encoding {
	case "":
		return []byte(e.Value), nil
	case encodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(e.Value)
		if err != nil {
			return nil, fmt.Errorf("decode entry %q: %w", e.Key, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("entry %q: unsupported encoding %q", e.Key, e.Encoding)
	}
}
