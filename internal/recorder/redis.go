package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisStream = "rhythm:results"
	DefaultRedisMaxLen = 100000

	defaultRedisPoolSize     = 20
	defaultRedisMaxRetries   = 3
	defaultRedisDialTimeout  = 5 * time.Second
	defaultRedisWriteTimeout = 5 * time.Second
)

// RedisConfig configures a RedisSink.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Cluster      bool
	ClusterNodes []string
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration

	Stream       string
	MaxLen       int64 // approximate stream cap; < 0 disables trimming
	WriteTimeout time.Duration
	RunID        string
}

// RedisSink appends results to a Redis stream with XADD, trimming it to
// roughly MaxLen entries.
type RedisSink struct {
	client  redis.UniversalClient
	stream  string
	maxLen  int64
	timeout time.Duration
	runID   string

	closeOnce sync.Once
	closeErr  error
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg *RedisConfig) (*RedisSink, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := newRedisSink(newRedisClient(conf), conf)
	if err := s.pingWithRetry(ctx, conf.MaxRetries); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

func newRedisSink(client redis.UniversalClient, conf *RedisConfig) *RedisSink {
	return &RedisSink{
		client:  client,
		stream:  conf.Stream,
		maxLen:  conf.MaxLen,
		timeout: conf.WriteTimeout,
		runID:   conf.RunID,
	}
}

func (s *RedisSink) Write(res Result) error {
	if res.RunID == "" {
		res.RunID = s.runID
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.XAdd(ctx, s.xaddArgs(res, payload)).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	return nil
}

func (s *RedisSink) xaddArgs(res Result, payload []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: []any{
			"run_id", res.RunID,
			"status", strconv.Itoa(res.Status),
			"path", res.Path,
			"result", string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return args
}

// Close releases the Redis client. It is idempotent.
func (s *RedisSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisSink) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := max(maxRetries+1, 1)

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = s.client.Ping(ctx).Err(); lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}
	if conf.WriteTimeout <= 0 {
		conf.WriteTimeout = defaultRedisWriteTimeout
	}
	if conf.Stream == "" {
		conf.Stream = DefaultRedisStream
	}
	if conf.MaxLen == 0 {
		conf.MaxLen = DefaultRedisMaxLen
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, errors.New("cluster_nodes is required when cluster=true")
		}
	} else if conf.Addr == "" {
		return nil, errors.New("addr is required when cluster=false")
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}
