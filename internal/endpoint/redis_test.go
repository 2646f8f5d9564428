package endpoint

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	testcontainers "github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

func redisAddrForTest(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse redis url %q: %v", uri, err)
	}
	return opts.Addr
}

func TestRedis_PubSubRoundTrip(t *testing.T) {
	addr := redisAddrForTest(t)
	opts := Options{RedisAddr: addr, RedisChannel: "mavtape-test", Backoff: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	src, err := NewSource(KindRedis, opts)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	defer src.Close()
	if err := src.Connect(ctx); err != nil {
		t.Fatalf("source Connect() error = %v", err)
	}

	sink, err := NewSink(KindRedis, opts)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	defer sink.Close()
	if err := sink.Connect(ctx); err != nil {
		t.Fatalf("sink Connect() error = %v", err)
	}

	// Binary payloads, including NUL and non-UTF-8 bytes, must survive.
	payloads := [][]byte{frame(0, 0x00, 0xFF, 0x80), {0xFD, 0x00}, frame(24)}
	for _, p := range payloads {
		if err := sink.Send(ctx, p); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	for i, want := range payloads {
		got, err := src.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive() #%d error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Receive() #%d = % x, want % x", i, got, want)
		}
	}

	if err := src.Close(); err != nil {
		t.Fatalf("source Close() error = %v", err)
	}
	if _, err := src.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() after Close error = %v, want ErrClosed", err)
	}
}
