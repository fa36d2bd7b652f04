// Package transfer resolves artifact URIs to Fetchers which copy the
// artifact's file tree into a local directory.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrUnsupportedScheme = errors.New("unsupported artifact uri scheme")

type Fetcher interface {
	// Exists checks the source location pointed by src.
	Exists(ctx context.Context, src string) (bool, error)

	// Fetch copies the file tree at src into the local directory dest.
	//
	// dest is created when missing.
	Fetch(ctx context.Context, src string, dest string) error
}

// Registry maps URI schemes to Fetchers.
//
// URIs with no scheme (plain filepaths) and "file" URIs go to the
// local Fetcher.
type Registry struct {
	local    Fetcher
	byScheme map[string]Fetcher
}

func NewRegistry(local Fetcher) *Registry {
	return &Registry{
		local:    local,
		byScheme: map[string]Fetcher{},
	}
}

func (r *Registry) Register(scheme string, f Fetcher) {
	r.byScheme[scheme] = f
}

// For picks the Fetcher responsible for src.
func (r *Registry) For(src string) (Fetcher, error) {
	scheme := ""
	if u, err := url.Parse(src); err == nil {
		scheme = u.Scheme
	}
	// windows drive letters and relative paths are not schemes
	if len(scheme) <= 1 || !strings.Contains(src, "://") {
		scheme = ""
	}

	switch scheme {
	case "", "file":
		return r.local, nil
	default:
		if f, ok := r.byScheme[scheme]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, src)
	}
}
