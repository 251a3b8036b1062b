// Package storage provides access to the host's content-addressed asset
// store. Depending on the deployment, assets may be reachable through an
// HTTP asset endpoint, a key-value blob store, a direct database handle, or
// any combination of the three; the Shim hides that behind one interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pterm/pterm"
)

// ErrNotFound is returned by GetItem when no strategy produced the asset.
var ErrNotFound = errors.New("asset not found in any storage backend")

// ErrWriteUnsupported is returned by SetItem when the deployment has no
// write path. Callers must treat this as fatal rather than drop the write.
var ErrWriteUnsupported = errors.New("asset writes not supported in this deployment")

// KV is a key-value blob store with enumeration.
type KV interface {
	GetItem(ctx context.Context, key string) ([]byte, error)
	SetItem(ctx context.Context, key string, data []byte) error
	Keys(ctx context.Context) ([]string, error)
}

// Getter is read-only access to asset blobs, used for the direct-database
// strategy where no enumeration or writes are available.
type Getter interface {
	GetItem(ctx context.Context, key string) ([]byte, error)
}

// Resolver maps a storage key to a fetchable URL. The second return value
// reports whether the deployment exposes an asset endpoint at all.
type Resolver interface {
	AssetURL(key string) (string, bool)
}

// Shim layers the available asset strategies behind a single store
// interface. Reads try the resolver first (it is the only strategy that
// also reaches server-side reinstated caches), then the key-value store,
// then the direct database handle. Any of the three may be nil.
type Shim struct {
	Resolver Resolver
	Client   *http.Client
	KV       KV
	Direct   Getter
}

func (s *Shim) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// GetItem resolves an asset through each available strategy in priority
// order and returns the first non-empty result. A failing strategy never
// prevents the next one from being tried.
func (s *Shim) GetItem(ctx context.Context, key string) ([]byte, error) {
	if s.Resolver != nil {
		if u, ok := s.Resolver.AssetURL(key); ok {
			data, err := s.fetch(ctx, u)
			if err != nil {
				pterm.Debug.Printfln("asset %s: url strategy failed: %v", key, err)
			} else if len(data) > 0 {
				return data, nil
			}
		}
	}

	if s.KV != nil {
		data, err := s.KV.GetItem(ctx, key)
		if err != nil {
			pterm.Debug.Printfln("asset %s: kv strategy failed: %v", key, err)
		} else if len(data) > 0 {
			return data, nil
		}
	}

	if s.Direct != nil {
		data, err := s.Direct.GetItem(ctx, key)
		if err != nil {
			pterm.Debug.Printfln("asset %s: direct strategy failed: %v", key, err)
		} else if len(data) > 0 {
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// SetItem writes an asset blob. The key-value store is the only write path;
// deployments without one must surface the failure loudly instead of
// silently losing the asset.
func (s *Shim) SetItem(ctx context.Context, key string, data []byte) error {
	if s.KV == nil {
		return ErrWriteUnsupported
	}
	if err := s.KV.SetItem(ctx, key, data); err != nil {
		return fmt.Errorf("store asset %s: %w", key, err)
	}
	return nil
}

// CanWrite reports whether SetItem has any backing strategy.
func (s *Shim) CanWrite() bool {
	return s.KV != nil
}

// Keys enumerates stored asset keys. Only the key-value store supports
// enumeration; other deployments return an empty list.
func (s *Shim) Keys(ctx context.Context) ([]string, error) {
	if s.KV == nil {
		return nil, nil
	}
	return s.KV.Keys(ctx)
}

func (s *Shim) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
