package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/palisade-io/palisade/policy"
)

// LastGood keeps the most recent successful value for one key so a fallback
// level can replay it while the live dependency is failing. Values are
// stored as JSON.
type LastGood[T any] struct {
	cache Cache
	key   string
	ttl   time.Duration
}

// NewLastGood creates a serve-stale holder backed by c. The ttl bounds how
// long a stale value is considered good enough to serve.
func NewLastGood[T any](c Cache, key string, ttl time.Duration) (*LastGood[T], error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return &LastGood[T]{cache: c, key: key, ttl: ttl}, nil
}

// Save stores value as the new last good result.
func (l *LastGood[T]) Save(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", l.key, err)
	}
	return l.cache.Set(ctx, l.key, data, l.ttl)
}

// Load returns the stored value, or ErrMiss when nothing fresh is cached.
func (l *LastGood[T]) Load(ctx context.Context) (T, error) {
	var value T
	data, ok := l.cache.Get(ctx, l.key)
	if !ok {
		return value, ErrMiss
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("cache: decode %s: %w", l.key, err)
	}
	return value, nil
}

// Fallback returns a fallback level that replays the last good value. A
// cache miss fails the level so the next one runs.
func (l *LastGood[T]) Fallback() policy.FallbackFunc[T] {
	return func(ctx context.Context, cause *policy.ClassifiedError) (T, error) {
		return l.Load(ctx)
	}
}

// Wrap returns an operation that saves every successful result before
// returning it, keeping the fallback value warm.
func (l *LastGood[T]) Wrap(op policy.Operation[T]) policy.Operation[T] {
	return func(ctx context.Context) (T, error) {
		value, err := op(ctx)
		if err != nil {
			return value, err
		}
		// A failed save is not worth failing the live result over.
		_ = l.Save(ctx, value)
		return value, nil
	}
}
