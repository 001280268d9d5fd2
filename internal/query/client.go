// Package query keeps upstream read results in a keyed cache and keeps that
// cache consistent with writes. Cache mutations only happen through the
// Client's operations: invalidate, patch and remove.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/metrics"
	"github.com/sitebook/gateway/internal/resource"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const backgroundRefreshTimeout = 2 * time.Minute

// RetryPolicy applies to reads only. Writes are never retried.
type RetryPolicy struct {
	Max       int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetry() RetryPolicy {
	return RetryPolicy{Max: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

type Options struct {
	// StaleTime is how long a result is served without refetching. Zero
	// keeps results fresh until they are invalidated.
	StaleTime time.Duration
	Retry     RetryPolicy
	// StaleWhileRevalidate serves an invalidated result immediately and
	// refreshes it in the background.
	StaleWhileRevalidate bool
}

type fetchFunc func(ctx context.Context) (json.RawMessage, error)

type Client struct {
	store  Store
	opts   Options
	logger *zap.Logger
	group  singleflight.Group
}

func NewClient(store Store, opts Options, logger *zap.Logger) *Client {
	return &Client{
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// namespace returns the "entity:scope" head of a key or key prefix.
func namespace(key string) string {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return key
	}
	if j := strings.IndexByte(key[i+1:], ':'); j >= 0 {
		return key[:i+1+j]
	}
	return strings.TrimSuffix(key, ":")
}

// supersede bumps the epoch of key's namespace, so fetches already in flight
// there are not stored.
func (c *Client) supersede(ctx context.Context, key string) error {
	return c.store.BumpEpoch(ctx, namespace(key))
}

func (c *Client) isStale(e Entry) bool {
	if e.Stale {
		return true
	}
	return c.opts.StaleTime > 0 && time.Since(e.UpdatedAt) > c.opts.StaleTime
}

// read returns the cached entry for key, fetching it when missing or stale.
// The bool result reports that a stale entry was served while a background
// refresh runs.
func (c *Client) read(ctx context.Context, entity, key string, fn fetchFunc) (Entry, bool, error) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, fetching upstream", zap.String("key", key), zap.Error(err))
		ok = false
	}

	switch {
	case ok && !c.isStale(e):
		metrics.RecordCacheLookup(entity, "hit")
		return e, false, nil
	case ok && c.opts.StaleWhileRevalidate:
		metrics.RecordCacheLookup(entity, "stale")
		c.refreshInBackground(key, fn)
		return e, true, nil
	}

	metrics.RecordCacheLookup(entity, "miss")
	fresh, err := c.fetch(ctx, key, fn)
	if err != nil {
		return Entry{}, false, err
	}
	return fresh, false, nil
}

// fetch runs fn once per key at a time. The upstream call is detached from
// ctx so other waiters are not cut off; a caller whose ctx ends stops waiting.
// A result whose namespace was written to while in flight is returned but
// not stored.
func (c *Client) fetch(ctx context.Context, key string, fn fetchFunc) (Entry, error) {
	ns := namespace(key)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		epoch, epochErr := c.store.Epoch(fctx, ns)

		data, err := c.withRetry(fctx, key, fn)
		if err != nil {
			return nil, err
		}

		e := Entry{Data: data, UpdatedAt: time.Now().UTC()}
		if epochErr != nil {
			c.logger.Warn("cache epoch unavailable, not storing", zap.String("key", key), zap.Error(epochErr))
			return e, nil
		}
		stored, err := c.store.SetIfEpoch(fctx, key, ns, epoch, e)
		switch {
		case err != nil:
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		case !stored:
			c.logger.Debug("discarding superseded fetch", zap.String("key", key))
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

func (c *Client) refreshInBackground(key string, fn fetchFunc) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		if _, err := c.fetch(ctx, key, fn); err != nil {
			c.logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

func (c *Client) withRetry(ctx context.Context, key string, fn fetchFunc) (json.RawMessage, error) {
	if c.opts.Retry.Max <= 0 {
		return fn(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.Retry.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.Retry.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	var out json.RawMessage
	op := func() error {
		data, err := fn(ctx)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying upstream read",
			zap.String("key", key),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.Retry.Max)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return out, nil
}

// retryable reports whether a read failure is worth another attempt. Missing
// entities and client errors other than timeouts and throttling are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var invalid *envelope.InvalidDataError
	if errors.As(err, &invalid) {
		return false
	}
	var rerr *resource.Error
	if errors.As(err, &rerr) && rerr.StatusCode >= 400 && rerr.StatusCode < 500 {
		return rerr.StatusCode == http.StatusRequestTimeout || rerr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// Invalidate marks every entry under prefix stale so the next read refetches.
// prefix must name the entity and scope.
func (c *Client) Invalidate(ctx context.Context, prefix string) error {
	if err := c.supersede(ctx, prefix); err != nil {
		return err
	}

	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return err
	}

	var errs []error
	for _, k := range keys {
		e, ok, err := c.store.Get(ctx, k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok || e.Stale {
			continue
		}
		e.Stale = true
		if err := c.store.Set(ctx, k, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Patch rewrites the data of every entry under prefix with fn. Entries for
// which fn reports no change are left alone.
func (c *Client) Patch(ctx context.Context, prefix string, fn func(json.RawMessage) (json.RawMessage, bool)) error {
	if err := c.supersede(ctx, prefix); err != nil {
		return err
	}

	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return err
	}

	var errs []error
	for _, k := range keys {
		e, ok, err := c.store.Get(ctx, k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		data, changed := fn(e.Data)
		if !changed {
			continue
		}
		e.Data = data
		if err := c.store.Set(ctx, k, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes key outright and discards any fetch in flight in its
// namespace.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.supersede(ctx, key); err != nil {
		return err
	}
	return c.store.Delete(ctx, key)
}

// RemovePrefix deletes every entry under prefix.
func (c *Client) RemovePrefix(ctx context.Context, prefix string) error {
	if err := c.supersede(ctx, prefix); err != nil {
		return err
	}
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, keys...)
}

// Snapshot returns what is cached for key without fetching.
func (c *Client) Snapshot(ctx context.Context, key string) (Entry, bool, error) {
	return c.store.Get(ctx, key)
}
