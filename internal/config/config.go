// Package config holds the settings shared by the capture and replay
// programs and loads them from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
)

// Config is the top-level configuration for a Mavtape session.
type Config struct {
	Capture   CaptureConfig   `json:"capture"`
	Replay    ReplayConfig    `json:"replay"`
	Endpoints EndpointsConfig `json:"endpoints"`
	Reconnect ReconnectConfig `json:"reconnect"`
	Monitor   MonitorConfig   `json:"monitor"`
}

// CaptureConfig holds capture program settings.
type CaptureConfig struct {
	Save          string        `json:"save"`
	Header        endpoint.Kind `json:"header"`
	Port          int           `json:"port"`
	Max           int           `json:"max"`
	StopOnEOF     bool          `json:"stop_on_eof"`
	WaitHeartbeat bool          `json:"wait_heartbeat"`
	Untimed       bool          `json:"untimed"`
	TraceFile     string        `json:"trace_file"`
	SyncInterval  time.Duration `json:"sync_interval"`
}

// ReplayConfig holds replay program settings.
type ReplayConfig struct {
	Load     string          `json:"load"`
	Adapters []endpoint.Kind `json:"adapters"`
	TCPPort  int             `json:"tcp_port"`
	UDPPort  int             `json:"udp_port"`
	N        int             `json:"n"`
	Speed    float64         `json:"speed"`
}

// EndpointsConfig holds transport settings used by both programs.
type EndpointsConfig struct {
	Host   string      `json:"host"`
	Pipe   string      `json:"pipe"`
	Device string      `json:"device"`
	Baud   int         `json:"baud"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig configures the Redis pub/sub endpoint.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Channel  string `json:"channel"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ReconnectConfig controls connect retries.
type ReconnectConfig struct {
	Backoff time.Duration `json:"backoff"`
}

// MonitorConfig enables the live monitor when Addr is set.
type MonitorConfig struct {
	Addr string `json:"addr"`
}

// Default returns a Config with the programs' documented defaults.
func Default() Config {
	return Config{
		Capture: CaptureConfig{
			Header:    endpoint.KindTCP,
			Port:      12011,
			TraceFile: "mavlink.log",
		},
		Replay: ReplayConfig{
			Load:     "mavmsg_dump.bin",
			Adapters: []endpoint.Kind{endpoint.KindStdio},
			TCPPort:  12001,
			UDPPort:  12002,
			Speed:    1,
		},
		Endpoints: EndpointsConfig{
			Host:   "localhost",
			Pipe:   "./mavlink_replay_pipe",
			Device: "/dev/ttyUSB0",
			Baud:   57600,
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Channel: endpoint.DefaultRedisChannel,
			},
		},
		Reconnect: ReconnectConfig{
			Backoff: endpoint.DefaultBackoff,
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if _, err := endpoint.ParseKind(string(c.Capture.Header)); err != nil {
		return fmt.Errorf("capture.header: %w", err)
	}
	if c.Capture.Header == endpoint.KindStdio {
		return fmt.Errorf("capture.header: stdio cannot be a capture source")
	}
	if err := validPort("capture.port", c.Capture.Port); err != nil {
		return err
	}
	if c.Capture.Max < 0 {
		return fmt.Errorf("capture.max must be non-negative, got %d", c.Capture.Max)
	}
	if c.Capture.SyncInterval < 0 {
		return fmt.Errorf("capture.sync_interval must be non-negative, got %s", c.Capture.SyncInterval)
	}

	if len(c.Replay.Adapters) == 0 {
		return fmt.Errorf("replay.adapters must name at least one adapter")
	}
	seen := make(map[endpoint.Kind]bool)
	for _, a := range c.Replay.Adapters {
		if _, err := endpoint.ParseKind(string(a)); err != nil {
			return fmt.Errorf("replay.adapters: %w", err)
		}
		if seen[a] {
			return fmt.Errorf("replay.adapters: %q listed twice", a)
		}
		seen[a] = true
	}
	if err := validPort("replay.tcp_port", c.Replay.TCPPort); err != nil {
		return err
	}
	if err := validPort("replay.udp_port", c.Replay.UDPPort); err != nil {
		return err
	}
	if c.Replay.N < -1 {
		return fmt.Errorf("replay.n must be -1, 0 or positive, got %d", c.Replay.N)
	}
	if c.Replay.Speed < 0 {
		return fmt.Errorf("replay.speed must be non-negative, got %g", c.Replay.Speed)
	}

	if c.Endpoints.Baud <= 0 {
		return fmt.Errorf("endpoints.baud must be positive, got %d", c.Endpoints.Baud)
	}
	if c.Reconnect.Backoff <= 0 {
		return fmt.Errorf("reconnect.backoff must be positive, got %s", c.Reconnect.Backoff)
	}
	return nil
}

func validPort(name string, p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", name, p)
	}
	return nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	c := raw.Capture
	if c.Save != "" {
		cfg.Capture.Save = c.Save
	}
	if c.Header != "" {
		cfg.Capture.Header = endpoint.Kind(c.Header)
	}
	if c.Port > 0 {
		cfg.Capture.Port = c.Port
	}
	if c.Max > 0 {
		cfg.Capture.Max = c.Max
	}
	if c.StopOnEOF != nil {
		cfg.Capture.StopOnEOF = *c.StopOnEOF
	}
	if c.WaitHeartbeat != nil {
		cfg.Capture.WaitHeartbeat = *c.WaitHeartbeat
	}
	if c.Untimed != nil {
		cfg.Capture.Untimed = *c.Untimed
	}
	if c.TraceFile != nil {
		cfg.Capture.TraceFile = *c.TraceFile
	}
	if c.SyncInterval != "" {
		d, err := time.ParseDuration(c.SyncInterval)
		if err != nil {
			return cfg, fmt.Errorf("parsing capture.sync_interval: %w", err)
		}
		cfg.Capture.SyncInterval = d
	}

	r := raw.Replay
	if r.Load != "" {
		cfg.Replay.Load = r.Load
	}
	if len(r.Adapters) > 0 {
		cfg.Replay.Adapters = cfg.Replay.Adapters[:0:0]
		for _, a := range r.Adapters {
			cfg.Replay.Adapters = append(cfg.Replay.Adapters, endpoint.Kind(a))
		}
	}
	if r.TCPPort > 0 {
		cfg.Replay.TCPPort = r.TCPPort
	}
	if r.UDPPort > 0 {
		cfg.Replay.UDPPort = r.UDPPort
	}
	if r.N != 0 {
		cfg.Replay.N = r.N
	}
	if r.Speed != nil {
		cfg.Replay.Speed = *r.Speed
	}

	e := raw.Endpoints
	if e.Host != "" {
		cfg.Endpoints.Host = e.Host
	}
	if e.Pipe != "" {
		cfg.Endpoints.Pipe = e.Pipe
	}
	if e.Device != "" {
		cfg.Endpoints.Device = e.Device
	}
	if e.Baud > 0 {
		cfg.Endpoints.Baud = e.Baud
	}
	if e.Redis.Addr != "" {
		cfg.Endpoints.Redis.Addr = e.Redis.Addr
	}
	if e.Redis.Channel != "" {
		cfg.Endpoints.Redis.Channel = e.Redis.Channel
	}
	if e.Redis.Password != "" {
		cfg.Endpoints.Redis.Password = e.Redis.Password
	}
	if e.Redis.DB > 0 {
		cfg.Endpoints.Redis.DB = e.Redis.DB
	}

	if raw.Reconnect.Backoff != "" {
		d, err := time.ParseDuration(raw.Reconnect.Backoff)
		if err != nil {
			return cfg, fmt.Errorf("parsing reconnect.backoff: %w", err)
		}
		cfg.Reconnect.Backoff = d
	}
	if raw.Monitor.Addr != "" {
		cfg.Monitor.Addr = raw.Monitor.Addr
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with string durations.
// Pointers distinguish "absent" from an explicit zero value.
type rawConfig struct {
	Capture struct {
		Save          string  `json:"save"`
		Header        string  `json:"header"`
		Port          int     `json:"port"`
		Max           int     `json:"max"`
		StopOnEOF     *bool   `json:"stop_on_eof"`
		WaitHeartbeat *bool   `json:"wait_heartbeat"`
		Untimed       *bool   `json:"untimed"`
		TraceFile     *string `json:"trace_file"`
		SyncInterval  string  `json:"sync_interval"`
	} `json:"capture"`
	Replay struct {
		Load     string   `json:"load"`
		Adapters []string `json:"adapters"`
		TCPPort  int      `json:"tcp_port"`
		UDPPort  int      `json:"udp_port"`
		N        int      `json:"n"`
		Speed    *float64 `json:"speed"`
	} `json:"replay"`
	Endpoints struct {
		Host   string `json:"host"`
		Pipe   string `json:"pipe"`
		Device string `json:"device"`
		Baud   int    `json:"baud"`
		Redis  struct {
			Addr     string `json:"addr"`
			Channel  string `json:"channel"`
			Password string `json:"password"`
			DB       int    `json:"db"`
		} `json:"redis"`
	} `json:"endpoints"`
	Reconnect struct {
		Backoff string `json:"backoff"`
	} `json:"reconnect"`
	Monitor struct {
		Addr string `json:"addr"`
	} `json:"monitor"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "capture": {
    "save": "mavmsg_dump.bin",
    "header": "tcp",
    "port": 12011,
    "max": 0,
    "stop_on_eof": false,
    "wait_heartbeat": false,
    "trace_file": "mavlink.log",
    "sync_interval": "0s"
  },
  "replay": {
    "load": "mavmsg_dump.bin",
    "adapters": ["stdio", "tcp", "udp"],
    "tcp_port": 12001,
    "udp_port": 12002,
    "n": 0,
    "speed": 1
  },
  "endpoints": {
    "host": "localhost",
    "pipe": "./mavlink_replay_pipe",
    "device": "/dev/ttyUSB0",
    "baud": 57600,
    "redis": {
      "addr": "localhost:6379",
      "channel": "mavtape"
    }
  },
  "reconnect": {
    "backoff": "1s"
  },
  "monitor": {
    "addr": ""
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
