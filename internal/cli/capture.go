package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
	"github.com/SmitUplenchwar2687/Mavtape/internal/config"
	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
	"github.com/SmitUplenchwar2687/Mavtape/internal/monitor"
	"github.com/SmitUplenchwar2687/Mavtape/internal/recorder"
)

type captureOptions struct {
	save         string
	header       string
	port         int
	max          int
	stopOnEOF    bool
	waitHB       bool
	untimed      bool
	traceFile    string
	syncInterval time.Duration
	quiet        bool
	monitorAddr  string
	configPath   string
	endpoints    endpointOptions
}

func (o *captureOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.Config) {
	if cfg == nil {
		return
	}
	o.endpoints.applyConfigIfUnset(cmd, cfg)

	if !cmd.Flags().Changed("save") {
		o.save = cfg.Capture.Save
	}
	if !cmd.Flags().Changed("header") {
		o.header = string(cfg.Capture.Header)
	}
	if !cmd.Flags().Changed("port") {
		o.port = cfg.Capture.Port
	}
	if !cmd.Flags().Changed("max") {
		o.max = cfg.Capture.Max
	}
	if !cmd.Flags().Changed("stop-on-eof") {
		o.stopOnEOF = cfg.Capture.StopOnEOF
	}
	if !cmd.Flags().Changed("wait-heartbeat") {
		o.waitHB = cfg.Capture.WaitHeartbeat
	}
	if !cmd.Flags().Changed("untimed") {
		o.untimed = cfg.Capture.Untimed
	}
	if !cmd.Flags().Changed("trace-file") {
		o.traceFile = cfg.Capture.TraceFile
	}
	if !cmd.Flags().Changed("sync-interval") {
		o.syncInterval = cfg.Capture.SyncInterval
	}
	if !cmd.Flags().Changed("monitor") {
		o.monitorAddr = cfg.Monitor.Addr
	}
}

func newCaptureCmd() *cobra.Command {
	var o captureOptions
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a live MAVLink stream to a capture log",
		Long: `Connects to a MAVLink source and prints one line per received message.

With --save every message is appended to a capture log together with its
time in milliseconds since the first message, and flushed before the next
one is read, so an interrupted capture still loads. Connection failures are
retried forever, printing a dot per attempt. Stop with Ctrl-C.

Sources: pipe, tcp, udp, serial, redis`,
		Example: `  mavtape capture --header tcp --port 12011 --save flight.bin
  mavtape capture --header udp --host 0.0.0.0 --port 14550 --save flight.bin --max 1000
  mavtape capture --header serial --device /dev/ttyACM0 --baud 115200
  mavtape capture --header pipe --pipe ./mavlink_replay_pipe --stop-on-eof --save pipe.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o.configPath)
			if err != nil {
				return err
			}
			o.applyConfigIfUnset(cmd, cfg)
			if err := o.endpoints.normalize(); err != nil {
				return err
			}
			if o.max < 0 {
				return fmt.Errorf("--max must be non-negative, got %d", o.max)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCapture(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), &o)
		},
	}

	cmd.Flags().StringVar(&o.save, "save", "", "capture log path (absent = print only)")
	cmd.Flags().StringVar(&o.header, "header", string(d.Capture.Header), "source transport (pipe, tcp, udp, serial, redis)")
	cmd.Flags().IntVar(&o.port, "port", d.Capture.Port, "tcp/udp port")
	cmd.Flags().IntVar(&o.max, "max", 0, "stop after this many messages (0 = no limit)")
	cmd.Flags().BoolVar(&o.stopOnEOF, "stop-on-eof", false, "end the capture when the source stream ends")
	cmd.Flags().BoolVar(&o.waitHB, "wait-heartbeat", false, "drop messages until the first HEARTBEAT and start timing there")
	cmd.Flags().BoolVar(&o.untimed, "untimed", false, "write the payload-only schema without timestamps")
	cmd.Flags().StringVar(&o.traceFile, "trace-file", d.Capture.TraceFile, "also write the message trace here when saving (empty = off)")
	cmd.Flags().DurationVar(&o.syncInterval, "sync-interval", 0, "fsync at most this often (0 = after every message)")
	cmd.Flags().BoolVar(&o.quiet, "quiet", false, "do not print the message trace")
	cmd.Flags().StringVar(&o.monitorAddr, "monitor", "", "serve a live monitor on this address (e.g. :8090)")
	cmd.Flags().StringVar(&o.configPath, "config", "", "JSON config file (flags override it)")
	o.endpoints.addFlags(cmd)

	return cmd
}

func runCapture(ctx context.Context, out, errOut io.Writer, o *captureOptions) error {
	kind, err := endpoint.ParseKind(o.header)
	if err != nil {
		return err
	}
	dec, err := mavlink.NewDecoder()
	if err != nil {
		return err
	}

	opts := o.endpoints.toOptions(o.port, errOut, out)
	opts.Decoder = dec
	opts.Verifier = dec
	src, err := endpoint.NewSource(kind, opts)
	if err != nil {
		return err
	}

	rec := &recorder.Recorder{
		Source:        src,
		Describer:     dec,
		MaxMessages:   o.max,
		StopOnEOF:     o.stopOnEOF,
		WaitHeartbeat: o.waitHB,
	}

	traceOut := out
	if o.save != "" {
		w, err := capturelog.Create(o.save, capturelog.Options{
			Untimed:      o.untimed,
			SyncInterval: o.syncInterval,
		})
		if err != nil {
			src.Close()
			return err
		}
		defer w.Close()
		rec.Log = w

		if o.traceFile != "" {
			f, err := os.OpenFile(o.traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				src.Close()
				return fmt.Errorf("opening trace file: %w", err)
			}
			defer f.Close()
			traceOut = io.MultiWriter(out, f)
		}
	}
	if !o.quiet {
		rec.Trace = log.New(traceOut, "", 0)
	}

	if o.monitorAddr != "" {
		hub, stopMonitor := startMonitor(ctx, o.monitorAddr, func() any {
			return map[string]any{
				"mode":     "capture",
				"endpoint": kind,
				"count":    rec.Count(),
			}
		})
		defer stopMonitor()
		rec.OnMessage = func(e recorder.Event) {
			hub.Broadcast(monitor.FromCapture(kind, e))
		}
	}

	fmt.Fprintf(errOut, "capturing from %s %s\n", kind, describeTarget(kind, opts))
	sum, err := rec.Run(ctx)

	fmt.Fprintf(errOut, "\ncaptured %d messages over %s (stopped by %s)\n",
		sum.Count, (time.Duration(sum.LastTimestampMs) * time.Millisecond).String(), sum.StoppedBy)
	if sum.Skipped > 0 {
		fmt.Fprintf(errOut, "skipped %d messages before the first heartbeat\n", sum.Skipped)
	}
	if rec.Log != nil {
		if cerr := rec.Log.Close(); cerr != nil && err == nil {
			err = cerr
		}
		fmt.Fprintf(errOut, "saved %d records to %s\n", rec.Log.Count(), o.save)
	}
	return err
}

func describeTarget(kind endpoint.Kind, o endpoint.Options) string {
	switch kind {
	case endpoint.KindTCP, endpoint.KindUDP:
		return fmt.Sprintf("%s:%d", o.Host, o.Port)
	case endpoint.KindPipe:
		return o.PipePath
	case endpoint.KindSerial:
		return fmt.Sprintf("%s@%d", o.Device, o.Baud)
	case endpoint.KindRedis:
		return fmt.Sprintf("%s/%s", o.RedisAddr, o.RedisChannel)
	default:
		return ""
	}
}
