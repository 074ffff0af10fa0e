package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_WithoutRedisCallsFetch(t *testing.T) {
	SetClient(nil)
	calls := 0
	var got cachedThing
	err := Aside(context.Background(), "thing:1", &got, time.Minute, func() error {
		calls++
		got = cachedThing{Name: "direct"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "direct", got.Name)
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dst *cachedThing) func() error {
		return func() error {
			calls++
			*dst = cachedThing{Name: "fresh", Count: 2}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, "thing:2", &first, time.Minute, fetch(&first)))
	assert.True(t, mr.Exists("thing:2"))

	var second cachedThing
	require.NoError(t, Aside(ctx, "thing:2", &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	var got cachedThing
	err := Aside(context.Background(), "thing:3", &got, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("thing:3"))
}

func TestAside_CorruptEntryRefetched(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("thing:4", "{not json"))

	var got cachedThing
	err := Aside(context.Background(), "thing:4", &got, time.Minute, func() error {
		got = cachedThing{Name: "repaired"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "repaired", got.Name)
}

func TestAside_ConcurrentMissesShareFetch(t *testing.T) {
	setupMiniredis(t)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]cachedThing, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dst := &results[i]
			_ = Aside(context.Background(), "thing:5", dst, time.Minute, func() error {
				calls.Add(1)
				<-release
				*dst = cachedThing{Name: "shared", Count: 7}
				return nil
			})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	for _, r := range results {
		assert.Equal(t, "shared", r.Name)
	}
}

func TestPostListKey_ChangesAfterInvalidation(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	before := PostListKey(ctx, "status=published&page=1")
	assert.Equal(t, before, PostListKey(ctx, "status=published&page=1"))
	assert.NotEqual(t, before, PostListKey(ctx, "status=published&page=2"))

	InvalidatePostLists(ctx)
	assert.NotEqual(t, before, PostListKey(ctx, "status=published&page=1"))
}

func TestInvalidatePost_RemovesDetailKeys(t *testing.T) {
	mr := setupMiniredis(t)
	id := uuid.New()
	require.NoError(t, mr.Set(PostKey(id), "{}"))
	require.NoError(t, mr.Set(PostSlugKey("hello"), "{}"))
	require.NoError(t, mr.Set(TagStatsKey, "[]"))

	InvalidatePost(context.Background(), id, "hello")

	assert.False(t, mr.Exists(PostKey(id)))
	assert.False(t, mr.Exists(PostSlugKey("hello")))
	assert.False(t, mr.Exists(TagStatsKey))
}

func TestRevokeToken(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err := IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeToken_NoRedis(t *testing.T) {
	SetClient(nil)
	assert.Error(t, RevokeToken(context.Background(), "jti", time.Minute))
	revoked, err := IsRevoked(context.Background(), "jti")
	assert.NoError(t, err)
	assert.False(t, revoked)
}
