package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var group singleflight.Group

// Aside loads key into dest, calling fetch to fill dest on a miss and storing
// the result with ttl. Concurrent misses for one key share a single fetch.
// Redis failures degrade to calling fetch directly.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	resource := resourceOf(key)
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(resource, "hit").Inc()
			return nil
		}
		// Undecodable entries are treated as misses and overwritten.
		client.Del(ctx, key)
	case errors.Is(err, redis.Nil):
	default:
		observability.CacheLookups.WithLabelValues(resource, "error").Inc()
		observability.GlobalLogger.WarnContext(ctx, "cache read failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return fetch()
	}
	observability.CacheLookups.WithLabelValues(resource, "miss").Inc()

	leader := false
	v, err, _ := group.Do(key, func() (any, error) {
		leader = true
		if err := fetch(); err != nil {
			return nil, err
		}
		payload, err := json.Marshal(dest)
		if err != nil {
			return nil, err
		}
		if setErr := client.Set(ctx, key, payload, ttl).Err(); setErr != nil {
			observability.GlobalLogger.WarnContext(ctx, "cache write failed",
				slog.String("key", key), slog.String("error", setErr.Error()))
		}
		return payload, nil
	})
	if err != nil {
		return err
	}
	if leader {
		return nil
	}
	return json.Unmarshal(v.([]byte), dest)
}

func resourceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
