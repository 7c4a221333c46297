package artifacts

import (
	"context"
	"errors"
	"strings"
)

// Store saves and serves compressed artifacts by flat filename.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
	Open(ctx context.Context, name string) ([]byte, error)
}

// ValidName reports whether name is usable as a flat artifact key.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)
