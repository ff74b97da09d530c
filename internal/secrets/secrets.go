// Package secrets resolves named credential bundles (SMTP logins, OAuth
// client secrets, portal basic-auth pairs) from the environment or a JSON
// file, with an in-process cache.
package secrets

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"spike_backend/platform/apperr"
)

// Store resolves a secret reference to its key-value credential bundle.
type Store interface {
	Get(ctx context.Context, ref string) (map[string]string, error)
}

// EnvStore reads secrets from environment variables. The reference is the
// variable name; the value is a flat JSON object.
type EnvStore struct{}

func (EnvStore) Get(_ context.Context, ref string) (map[string]string, error) {
	const op = "secrets.EnvStore.Get"
	raw := os.Getenv(ref)
	if raw == "" {
		return nil, apperr.NotFound("secret not configured: " + ref).WithOp(op)
	}
	return decode([]byte(raw), op)
}

// FileStore reads secrets from a JSON file mapping reference names to flat
// objects. Useful for local development.
type FileStore struct {
	Path string
}

func (s FileStore) Get(_ context.Context, ref string) (map[string]string, error) {
	const op = "secrets.FileStore.Get"
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read secrets file", err).WithOp(op)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to parse secrets file", err).WithOp(op)
	}
	bundle, ok := all[ref]
	if !ok {
		return nil, apperr.NotFound("secret not configured: " + ref).WithOp(op)
	}
	return decode(bundle, op)
}

func decode(raw []byte, op string) (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "secret is not a flat JSON object", err).WithOp(op)
	}
	return out, nil
}

// Cached wraps a Store with a last-writer-wins cache. Parsed bundles are
// immutable once stored; callers must not mutate the returned map.
type Cached struct {
	inner Store
	mu    sync.RWMutex
	byRef map[string]map[string]string
}

func NewCached(inner Store) *Cached {
	return &Cached{inner: inner, byRef: make(map[string]map[string]string)}
}

func (c *Cached) Get(ctx context.Context, ref string) (map[string]string, error) {
	c.mu.RLock()
	bundle, ok := c.byRef[ref]
	c.mu.RUnlock()
	if ok {
		return bundle, nil
	}

	bundle, err := c.inner.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byRef[ref] = bundle
	c.mu.Unlock()
	return bundle, nil
}
