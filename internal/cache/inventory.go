package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	PostKeyPrefix      = "post:%s"
	PostSlugKeyPrefix  = "post:slug:%s"
	PostListKeyPrefix  = "posts:v%d:%s"
	TopPostKey         = "posts:top"
	CategoryStatsKey   = "stats:categories"
	TagStatsKey        = "stats:tags"
	SiteSettingsKey    = "settings:site"
	SitemapKey         = "seo:sitemap"
	postsVersionKey    = "ver:posts"
	revokedTokenPrefix = "blacklist:"
)

const (
	PostTTL     = 30 * time.Minute
	PostListTTL = 2 * time.Minute
	StatsTTL    = 5 * time.Minute
	SettingsTTL = 10 * time.Minute
	SitemapTTL  = time.Hour
)

func PostKey(postID uuid.UUID) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PostSlugKey(slug string) string {
	return fmt.Sprintf(PostSlugKeyPrefix, slug)
}

// PostListKey scopes a listing fingerprint to the current posts version,
// so bumping the version orphans every cached page at once.
func PostListKey(ctx context.Context, fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf(PostListKeyPrefix, postsVersion(ctx), hex.EncodeToString(sum[:12]))
}

func postsVersion(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, postsVersionKey).Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidatePost drops a post's detail entries along with every derived listing.
func InvalidatePost(ctx context.Context, postID uuid.UUID, slugs ...string) {
	keys := []string{PostKey(postID)}
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, PostSlugKey(s))
		}
	}
	Invalidate(ctx, keys...)
	InvalidatePostLists(ctx)
}

// InvalidatePostLists bumps the posts version and drops aggregates built from posts.
func InvalidatePostLists(ctx context.Context) {
	if client == nil {
		return
	}
	client.Incr(ctx, postsVersionKey)
	Invalidate(ctx, TopPostKey, CategoryStatsKey, TagStatsKey, SitemapKey)
}

// InvalidateTaxonomy drops aggregates and listings that embed category or tag data.
func InvalidateTaxonomy(ctx context.Context) {
	InvalidatePostLists(ctx)
}

func InvalidateSettings(ctx context.Context) {
	Invalidate(ctx, SiteSettingsKey, SitemapKey)
}

// RevokeToken blacklists a token ID until its natural expiry.
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil {
		return fmt.Errorf("redis unavailable")
	}
	if ttl <= 0 {
		return nil
	}
	return client.Set(ctx, revokedTokenPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether a token ID was blacklisted.
// Lookup errors are returned so callers can choose a fail policy.
func IsRevoked(ctx context.Context, jti string) (bool, error) {
	if client == nil || jti == "" {
		return false, nil
	}
	n, err := client.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
