package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr}, nil)
	assert.Error(t, err)
}

func TestFromRedisConfig(t *testing.T) {
	rc := config.DefaultRedisConfig()
	rc.Addr = "redis:6379"
	rc.DB = 3
	rc.AnswerTTL = 90 * time.Second

	cfg := FromRedisConfig(rc)
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, 90*time.Second, cfg.DefaultTTL)
	assert.Greater(t, cfg.PoolSize, 0)
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "kiosk:answer:<jarvis_0>:enable=True", "조명을 켰습니다.", time.Minute))

	value, err := manager.Get(ctx, "kiosk:answer:<jarvis_0>:enable=True")
	require.NoError(t, err)
	assert.Equal(t, "조명을 켰습니다.", value)
}

func TestManager_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "missing")
	assert.True(t, IsCacheMiss(err))
	assert.Empty(t, value)
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type answer struct {
		Ko string `json:"ko"`
		En string `json:"en"`
	}

	in := answer{Ko: "문을 열었습니다.", En: "The door has been opened."}
	require.NoError(t, manager.SetJSON(ctx, "door", in, 0))

	var out answer
	require.NoError(t, manager.GetJSON(ctx, "door", &out))
	assert.Equal(t, in, out)

	require.NoError(t, manager.Set(ctx, "bad", "{", 0))
	assert.Error(t, manager.GetJSON(ctx, "bad", &out))
}

func TestManager_DeleteAndPrefix(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 130; i++ {
		require.NoError(t, manager.Set(ctx, fmt.Sprintf("kiosk:answer:%d", i), "x", 0))
	}
	require.NoError(t, manager.Set(ctx, "other", "y", 0))

	n, err := manager.DeletePrefix(ctx, "kiosk:answer:")
	require.NoError(t, err)
	assert.Equal(t, 130, n)
	assert.True(t, mr.Exists("other"))

	require.NoError(t, manager.Delete(ctx, "other"))
	assert.False(t, mr.Exists("other"))
	require.NoError(t, manager.Delete(ctx))
}

func TestManager_Stats(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	_, _ = manager.Get(ctx, "a")
	_, _ = manager.Get(ctx, "a")
	_, _ = manager.Get(ctx, "b")

	stats, err := manager.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Keys)
}

func TestManager_HealthCheck(t *testing.T) {
	_, manager := setupTestRedis(t)

	assert.Equal(t, "redis", manager.Name())
	assert.NoError(t, manager.Check(context.Background()))
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "a", "1", 0), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	_, err = manager.DeletePrefix(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = manager.GetStats(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
