// Package storage defines where the ledger artifacts are written. Backends
// accept a set of objects and either replace all of them or report an error.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Object is one artifact to write.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// BlobStore persists a set of objects.
type BlobStore interface {
	// PutObjects writes every object and returns their URIs in input order.
	PutObjects(ctx context.Context, objects []Object) ([]string, error)
}

// ErrInvalidPath is returned for blank or escaping object paths.
var ErrInvalidPath = errors.New("invalid object path")

// ValidatePaths rejects blank, absolute, duplicate, or parent-escaping paths.
func ValidatePaths(objects []Object) error {
	seen := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		p := strings.TrimSpace(obj.Path)
		if p == "" {
			return fmt.Errorf("%w: path is required", ErrInvalidPath)
		}
		clean := path.Clean(p)
		if strings.HasPrefix(p, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, obj.Path)
		}
		if _, dup := seen[clean]; dup {
			return fmt.Errorf("%w: duplicate %q", ErrInvalidPath, obj.Path)
		}
		seen[clean] = struct{}{}
	}
	return nil
}
