//go:build !manifold

// Package manifold binds the Manifold library as an alternative relief
// kernel. Without the "manifold" build tag this stub is compiled and New
// reports that the kernel is unavailable, so callers fall back to sdfx.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/dogbone/pkg/kernel"
)

// ErrUnavailable is returned by New when the binary was built without
// the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrUnavailable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
