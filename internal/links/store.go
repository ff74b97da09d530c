package links

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"spike_backend/platform/apperr"
)

const (
	tokenLength = 16
	maxAttempts = 3

	keyPrefix = "availlink:"
)

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Store keeps availability link records in Redis keyed by token id. SETNX
// gives the create-if-absent guarantee token allocation depends on.
type Store struct {
	rdb redis.UniversalClient
}

func NewStore(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// NewTokenID draws a random 16-character base62 token.
func NewTokenID() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}

// Allocate draws token ids until a create-if-absent insert succeeds, up to
// three attempts. The record's TokenID, IssuedAtMs and ExpiresAtMs are filled
// in from now and ttl.
func (s *Store) Allocate(ctx context.Context, rec Record, ttl time.Duration, now time.Time) (Record, error) {
	const op = "links.Store.Allocate"

	rec.IssuedAtMs = now.UnixMilli()
	rec.ExpiresAtMs = now.Add(ttl).UnixMilli()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := NewTokenID()
		if err != nil {
			return Record{}, apperr.Wrap(apperr.KindInternal, "failed to draw link token", err).WithOp(op)
		}
		rec.TokenID = token

		ok, err := s.PutIfAbsent(ctx, rec, ttl)
		if err != nil {
			return Record{}, err
		}
		if ok {
			return rec, nil
		}
	}
	return Record{}, apperr.Internal("link token allocation exhausted retries").WithOp(op)
}

// PutIfAbsent inserts the record unless its token id is already taken.
func (s *Store) PutIfAbsent(ctx context.Context, rec Record, ttl time.Duration) (bool, error) {
	const op = "links.Store.PutIfAbsent"

	payload, err := json.Marshal(rec)
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to encode link record", err).WithOp(op)
	}
	ok, err := s.rdb.SetNX(ctx, keyPrefix+rec.TokenID, payload, ttl).Result()
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to store link record", err).WithOp(op)
	}
	return ok, nil
}

// Get resolves a token id. Missing, expired or malformed records are a
// not-found; the caller decides how that renders.
func (s *Store) Get(ctx context.Context, tokenID string, now time.Time) (Record, error) {
	const op = "links.Store.Get"

	payload, err := s.rdb.Get(ctx, keyPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, apperr.NotFound("availability link not found").WithOp(op)
	}
	if err != nil {
		return Record{}, apperr.Wrap(apperr.KindInternal, "failed to load link record", err).WithOp(op)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, apperr.NotFound("availability link not found").WithOp(op)
	}
	if rec.ExpiresAtMs <= now.UnixMilli() {
		return Record{}, apperr.NotFound("availability link expired").WithOp(op)
	}
	return rec, nil
}

// Delete removes a link record. Used by the expiry sweep and by tests.
func (s *Store) Delete(ctx context.Context, tokenID string) error {
	const op = "links.Store.Delete"
	if err := s.rdb.Del(ctx, keyPrefix+tokenID).Err(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete link record", err).WithOp(op)
	}
	return nil
}
