package cli

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Mavtape/internal/config"
	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
)

// endpointOptions are the transport flags shared by capture and replay.
type endpointOptions struct {
	host          string
	pipe          string
	device        string
	baud          int
	redisAddr     string
	redisChannel  string
	redisPassword string
	redisDB       int
	backoff       time.Duration
}

func (o *endpointOptions) addFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().StringVar(&o.host, "host", d.Endpoints.Host, "remote host for tcp/udp endpoints")
	cmd.Flags().StringVar(&o.pipe, "pipe", d.Endpoints.Pipe, "named pipe path")
	cmd.Flags().StringVar(&o.device, "device", d.Endpoints.Device, "serial device path")
	cmd.Flags().IntVar(&o.baud, "baud", d.Endpoints.Baud, "serial baud rate")
	cmd.Flags().StringVar(&o.redisAddr, "redis-addr", d.Endpoints.Redis.Addr, "redis address (host:port)")
	cmd.Flags().StringVar(&o.redisChannel, "redis-channel", d.Endpoints.Redis.Channel, "redis pub/sub channel")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().DurationVar(&o.backoff, "backoff", d.Reconnect.Backoff, "pause between connect attempts")
}

func (o *endpointOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.Config) {
	if cfg == nil {
		return
	}

	if !cmd.Flags().Changed("host") {
		o.host = cfg.Endpoints.Host
	}
	if !cmd.Flags().Changed("pipe") {
		o.pipe = cfg.Endpoints.Pipe
	}
	if !cmd.Flags().Changed("device") {
		o.device = cfg.Endpoints.Device
	}
	if !cmd.Flags().Changed("baud") {
		o.baud = cfg.Endpoints.Baud
	}
	if !cmd.Flags().Changed("redis-addr") {
		o.redisAddr = cfg.Endpoints.Redis.Addr
	}
	if !cmd.Flags().Changed("redis-channel") {
		o.redisChannel = cfg.Endpoints.Redis.Channel
	}
	if !cmd.Flags().Changed("redis-password") {
		o.redisPassword = cfg.Endpoints.Redis.Password
	}
	if !cmd.Flags().Changed("redis-db") {
		o.redisDB = cfg.Endpoints.Redis.DB
	}
	if !cmd.Flags().Changed("backoff") {
		o.backoff = cfg.Reconnect.Backoff
	}
}

func (o *endpointOptions) normalize() error {
	if o.host == "" {
		return fmt.Errorf("--host cannot be empty")
	}
	if o.backoff <= 0 {
		return fmt.Errorf("--backoff must be positive, got %s", o.backoff)
	}
	addr, err := normalizeRedisAddr(o.redisAddr)
	if err != nil {
		return err
	}
	o.redisAddr = addr
	return nil
}

// toOptions builds endpoint options for a transport bound to port.
func (o *endpointOptions) toOptions(port int, indicator, stdout io.Writer) endpoint.Options {
	return endpoint.Options{
		Host:          o.host,
		Port:          port,
		PipePath:      o.pipe,
		Device:        o.device,
		Baud:          o.baud,
		RedisAddr:     o.redisAddr,
		RedisChannel:  o.redisChannel,
		RedisPassword: o.redisPassword,
		RedisDB:       o.redisDB,
		Backoff:       o.backoff,
		Indicator:     indicator,
		Stdout:        stdout,
	}
}

// normalizeRedisAddr accepts "host", ":port" or "host:port" and fills in
// the default host and port.
func normalizeRedisAddr(addr string) (string, error) {
	host, port := addr, "6379"
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host, port = h, p
	}
	if host == "" {
		host = "localhost"
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return "", fmt.Errorf("invalid redis port in --redis-addr %q: %w", addr, err)
	}
	if n <= 0 || n > 65535 {
		return "", fmt.Errorf("redis port must be in 1..65535, got %d", n)
	}
	return net.JoinHostPort(host, port), nil
}

// loadConfig reads and validates the --config file, if any.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return &cfg, nil
}
