//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/testutil"
)

func TestIntegrationCache_ActivityRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewWithClient(testutil.StartRedis(t))

	_, err := c.GetActivity(ctx, "a-1")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetNegativeCache(ctx, "a-1"))
	neg, err := c.IsNegativelyCached(ctx, "a-1")
	require.NoError(t, err)
	require.True(t, neg)

	activity := &model.Activity{
		ID:       "a-1",
		Title:    "Film night",
		Category: model.CategoryFilm,
		Date:     time.Date(2026, 11, 2, 20, 0, 0, 0, time.UTC),
		Attendees: []model.Attendee{
			{Username: "bob", IsHost: true},
		},
	}
	require.NoError(t, c.SetActivity(ctx, activity))

	neg, err = c.IsNegativelyCached(ctx, "a-1")
	require.NoError(t, err)
	require.False(t, neg, "SetActivity should clear negative entry")

	got, err := c.GetActivity(ctx, "a-1")
	require.NoError(t, err)
	require.Equal(t, "Film night", got.Title)
	require.Len(t, got.Attendees, 1)

	require.NoError(t, c.DeleteActivity(ctx, "a-1"))
	_, err = c.GetActivity(ctx, "a-1")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestIntegrationCache_IPRateLimit(t *testing.T) {
	ctx := context.Background()
	c := NewWithClient(testutil.StartRedis(t))

	for i := 0; i < 3; i++ {
		res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should be allowed", i)
	}

	res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestIntegrationCache_UserRateLimitDisabled(t *testing.T) {
	ctx := context.Background()
	c := NewWithClient(testutil.StartRedis(t))

	res, err := c.CheckUserRateLimit(ctx, "user-1", 0, 5)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.EqualValues(t, 5, res.Remaining)
}
