package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenPurger struct {
	mock.Mock
}

func (m *MockTokenPurger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type MockSitemapRefresher struct {
	mock.Mock
}

func (m *MockSitemapRefresher) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestAdd_Validates(t *testing.T) {
	s := New()
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		job        string
		expression string
		fn         Job
	}{
		{"empty name", "", "@hourly", noop},
		{"nil job", "x", "@hourly", nil},
		{"bad expression", "x", "every tuesday", noop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Add(tt.job, tt.expression, tt.fn))
		})
	}
	assert.Zero(t, s.Entries())
}

func TestRegisterDefaults(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterDefaults(new(MockTokenPurger), new(MockSitemapRefresher)))
	assert.Equal(t, 2, s.Entries())
}

func TestPurgeTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purger := new(MockTokenPurger)
	purger.On("PurgeExpired", mock.Anything, now).Return(int64(4), nil).Once()
	purger.On("PurgeExpired", mock.Anything, now).Return(int64(0), errors.New("db down")).Once()

	job := PurgeTokens(purger, func() time.Time { return now })
	require.NoError(t, job(context.Background()))

	err := job(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge user tokens")
	purger.AssertExpectations(t)
}

func TestRefreshSitemap(t *testing.T) {
	sitemap := new(MockSitemapRefresher)
	sitemap.On("Refresh", mock.Anything).Return(errors.New("boom"))

	err := RefreshSitemap(sitemap)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh sitemap")
	sitemap.AssertExpectations(t)
}

func TestRun_AppliesTimeout(t *testing.T) {
	s := New(WithJobTimeout(10 * time.Millisecond))
	err := s.Run(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStart_RunsScheduledJobs(t *testing.T) {
	s := New()
	var calls atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
	s.Stop()
}
