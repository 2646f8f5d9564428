package endpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis endpoints fan a capture out through pub/sub: the sink PUBLISHes each
// message to a channel and any number of sources SUBSCRIBE to it.

const (
	defaultRedisPoolSize    = 4
	defaultRedisDialTimeout = 5 * time.Second
)

func newRedisClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        opts.RedisAddr,
		Password:    opts.RedisPassword,
		DB:          opts.RedisDB,
		PoolSize:    defaultRedisPoolSize,
		DialTimeout: defaultRedisDialTimeout,
		// Reconnects are driven by connectWithRetry.
		MaxRetries: -1,
	})
}

type redisSource struct {
	*lifecycle
	opts   Options
	target string
	client *redis.Client

	mu sync.Mutex
	ps *redis.PubSub
}

func newRedisSource(opts Options) *redisSource {
	return &redisSource{
		lifecycle: newLifecycle(KindRedis),
		opts:      opts,
		target:    opts.RedisAddr + "/" + opts.RedisChannel,
		client:    newRedisClient(opts),
	}
}

func (s *redisSource) Connect(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := connectWithRetry(ctx, s.lifecycle, s.opts, s.target, func(ctx context.Context) error {
		if err := s.client.Ping(ctx).Err(); err != nil {
			return err
		}
		ps := s.client.Subscribe(ctx, s.opts.RedisChannel)
		// Receive confirms the subscription before any publish can be missed.
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isClosed() {
			_ = ps.Close()
			return ErrClosed
		}
		s.ps = ps
		return nil
	})
	if err != nil {
		return ioError(ctx, s.lifecycle, err)
	}
	return nil
}

func (s *redisSource) Receive(ctx context.Context) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	ps := s.ps
	s.mu.Unlock()
	if ps == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		ps = s.ps
		s.mu.Unlock()
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	msg, err := ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis receive: %w", ioError(ctx, s.lifecycle, err))
	}
	return []byte(msg.Payload), nil
}

func (s *redisSource) Close() error {
	return s.close(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ps != nil {
			_ = s.ps.Close()
			s.ps = nil
		}
		return s.client.Close()
	})
}

type redisSink struct {
	*lifecycle
	opts   Options
	target string
	client *redis.Client
}

func newRedisSink(opts Options) *redisSink {
	return &redisSink{
		lifecycle: newLifecycle(KindRedis),
		opts:      opts,
		target:    opts.RedisAddr + "/" + opts.RedisChannel,
		client:    newRedisClient(opts),
	}
}

func (s *redisSink) Connect(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := connectWithRetry(ctx, s.lifecycle, s.opts, s.target, func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
	if err != nil {
		return ioError(ctx, s.lifecycle, err)
	}
	return nil
}

func (s *redisSink) Send(ctx context.Context, payload []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.client.Publish(ctx, s.opts.RedisChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", s.target, err)
	}
	return nil
}

func (s *redisSink) Close() error {
	return s.close(s.client.Close)
}
