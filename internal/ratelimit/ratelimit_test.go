package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AllowsBurstThenBlocks(t *testing.T) {
	l := NewMemory(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok, "sixth request within the minute")

	ok, _ = l.Allow(ctx, "user:2")
	assert.True(t, ok, "keys are independent")
}

func TestMemory_WindowResetDropsOldKeys(t *testing.T) {
	l := NewMemory(2, time.Minute)
	base := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for _, want := range []bool{true, true, false} {
		ok, _ := l.Allow(ctx, "user:1")
		assert.Equal(t, want, ok)
	}
	_, _ = l.Allow(ctx, "user:2")
	assert.Len(t, l.counts, 2)

	l.now = func() time.Time { return base.Add(59 * time.Second) }
	ok, _ := l.Allow(ctx, "user:1")
	assert.False(t, ok, "same window")

	l.now = func() time.Time { return base.Add(time.Minute) }
	ok, _ = l.Allow(ctx, "user:1")
	assert.True(t, ok, "next window")
	assert.Len(t, l.counts, 1, "counters from the previous window are gone")
}

func TestRedis_FixedWindow(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	l := NewRedis(rdb, "rl:tickets", 2, time.Minute)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }
	key := l.key("7")

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	ctx := context.Background()
	for _, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Error(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	l := NewRedis(rdb, "rl:tickets", 2, time.Minute)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }

	mock.ExpectIncr(l.key("7")).SetErr(errors.New("timeout"))
	ok, err := l.Allow(context.Background(), "7")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedis_KeyRollsOverWithWindow(t *testing.T) {
	l := NewRedis(nil, "rl", 5, time.Minute)
	base := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	l.now = func() time.Time { return base }
	first := l.key("u")
	l.now = func() time.Time { return base.Add(59 * time.Second) }
	assert.Equal(t, first, l.key("u"))
	l.now = func() time.Time { return base.Add(time.Minute) }
	assert.NotEqual(t, first, l.key("u"))
}
