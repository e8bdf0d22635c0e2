package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

func mockSink(t *testing.T, cfg RedisConfig) (*RedisSink, redismock.ClientMock) {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "mock:6379"
	}
	conf, err := normalizeRedisConfig(&cfg)
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	return newRedisSink(db, conf), mock
}

func TestRedisSink_Write(t *testing.T) {
	s, mock := mockSink(t, RedisConfig{RunID: "run-1"})

	res := sample("/health", 200)
	withID := res
	withID.RunID = "run-1"
	payload, err := json.Marshal(withID)
	require.NoError(t, err)

	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: DefaultRedisStream,
		MaxLen: DefaultRedisMaxLen,
		Approx: true,
		Values: []any{"run_id", "run-1", "status", "200", "path", "/health", "result", string(payload)},
	}).SetVal("1-0")

	require.NoError(t, s.Write(res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_NoTrim(t *testing.T) {
	s, mock := mockSink(t, RedisConfig{Stream: "custom", MaxLen: -1})

	res := sample("/x", 0)
	res.RunID = "explicit"
	payload, _ := json.Marshal(res)

	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: "custom",
		Values: []any{"run_id", "explicit", "status", "0", "path", "/x", "result", string(payload)},
	}).SetVal("2-0")

	require.NoError(t, s.Write(res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_WriteError(t *testing.T) {
	s, mock := mockSink(t, RedisConfig{})

	res := sample("/x", 200)
	payload, _ := json.Marshal(res)
	mock.ExpectXAdd(s.xaddArgs(res, payload)).SetErr(errors.New("READONLY"))

	err := s.Write(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestNormalizeRedisConfig(t *testing.T) {
	_, err := normalizeRedisConfig(nil)
	assert.Error(t, err)

	_, err = normalizeRedisConfig(&RedisConfig{})
	assert.Error(t, err)

	_, err = normalizeRedisConfig(&RedisConfig{Cluster: true})
	assert.Error(t, err)

	conf, err := normalizeRedisConfig(&RedisConfig{Addr: "localhost:6379"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRedisStream, conf.Stream)
	assert.Equal(t, int64(DefaultRedisMaxLen), conf.MaxLen)
	assert.Equal(t, defaultRedisPoolSize, conf.PoolSize)
}

func TestRedisSink_CloseIsIdempotent(t *testing.T) {
	s, _ := mockSink(t, RedisConfig{})
	first := s.Close()
	assert.Equal(t, first, s.Close())
}

func newRedisSinkForTest(t *testing.T, cfg RedisConfig) *RedisSink {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cfg.Addr = endpoint
	s, err := NewRedisSink(ctx, &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	s := newRedisSinkForTest(t, RedisConfig{Stream: "it:results", RunID: "it"})

	rec := New(0, s)
	for _, p := range []string{"/a", "/b", "/c"} {
		require.NoError(t, rec.Record(sample(p, 200)))
	}

	ctx := context.Background()
	n, err := s.client.XLen(ctx, "it:results").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	msgs, err := s.client.XRange(ctx, "it:results", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "/a", msgs[0].Values["path"])

	var got Result
	require.NoError(t, json.Unmarshal([]byte(msgs[2].Values["result"].(string)), &got))
	assert.Equal(t, "it", got.RunID)
	assert.Equal(t, "/c", got.Path)
}
