// Package directory resolves other users' public keys with a
// fetch-once-cache-forever policy.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chatkit/api"
	"chatkit/crypto"
	"chatkit/storage"
)

// Fetcher is the remote lookup the directory falls back to on a cache miss.
type Fetcher interface {
	GetUserPublicKey(ctx context.Context, userID string) (*api.PublicKeyResponse, error)
}

// Directory memoizes user public keys. Keys are treated as immutable for a
// user's lifetime: once resolved, a key is never refetched.
type Directory struct {
	fetcher Fetcher
	store   *storage.Store

	mu       sync.Mutex
	keys     map[string]*[crypto.KeySize]byte
	inflight map[string]chan struct{}
}

// New creates a directory. The store is optional; when present it persists
// resolved keys across sessions.
func New(fetcher Fetcher, store *storage.Store) (*Directory, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	return &Directory{
		fetcher:  fetcher,
		store:    store,
		keys:     make(map[string]*[crypto.KeySize]byte),
		inflight: make(map[string]chan struct{}),
	}, nil
}

// Lookup resolves one user's public key: memory, then persistent cache, then
// remote fetch. Concurrent lookups for the same user share a single fetch.
func (d *Directory) Lookup(ctx context.Context, userID string) (*[crypto.KeySize]byte, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	for {
		d.mu.Lock()
		if key, ok := d.keys[userID]; ok {
			d.mu.Unlock()
			return key, nil
		}

		if wait, ok := d.inflight[userID]; ok {
			d.mu.Unlock()
			select {
			case <-wait:
				// The other lookup finished; loop to read its result (or
				// retry the fetch if it failed).
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		d.inflight[userID] = done
		d.mu.Unlock()

		key, err := d.resolve(ctx, userID)

		d.mu.Lock()
		if err == nil {
			d.keys[userID] = key
		}
		delete(d.inflight, userID)
		close(done)
		d.mu.Unlock()

		return key, err
	}
}

func (d *Directory) resolve(ctx context.Context, userID string) (*[crypto.KeySize]byte, error) {
	if d.store != nil {
		record, err := d.store.GetPublicKey(userID)
		if err == nil {
			key, decodeErr := crypto.DecodeKey(record.PublicKey)
			if decodeErr == nil {
				return key, nil
			}
			// A corrupt cached key falls through to a fresh fetch.
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	response, err := d.fetcher.GetUserPublicKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch public key for user %q: %w", userID, err)
	}

	key, err := crypto.DecodeKey(response.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key for user %q: %w", userID, err)
	}

	if d.store != nil {
		if err := d.store.SavePublicKey(userID, response.PublicKey); err != nil {
			return nil, err
		}
	}

	return key, nil
}
