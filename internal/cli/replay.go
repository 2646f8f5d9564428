package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Mavtape/internal/config"
	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
	"github.com/SmitUplenchwar2687/Mavtape/internal/monitor"
	"github.com/SmitUplenchwar2687/Mavtape/internal/progress"
	"github.com/SmitUplenchwar2687/Mavtape/internal/replay"
)

type replayOptions struct {
	load        string
	adapters    []string
	tcpPort     int
	udpPort     int
	n           int
	speed       float64
	fromMs      int64
	toMs        int64
	msgIDs      []uint
	noProgress  bool
	monitorAddr string
	configPath  string
	endpoints   endpointOptions
}

func (o *replayOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.Config) {
	if cfg == nil {
		return
	}
	o.endpoints.applyConfigIfUnset(cmd, cfg)

	if !cmd.Flags().Changed("load") {
		o.load = cfg.Replay.Load
	}
	if !cmd.Flags().Changed("adapter") {
		o.adapters = o.adapters[:0:0]
		for _, a := range cfg.Replay.Adapters {
			o.adapters = append(o.adapters, string(a))
		}
	}
	if !cmd.Flags().Changed("tcp") {
		o.tcpPort = cfg.Replay.TCPPort
	}
	if !cmd.Flags().Changed("udp") {
		o.udpPort = cfg.Replay.UDPPort
	}
	if !cmd.Flags().Changed("n") {
		o.n = cfg.Replay.N
	}
	if !cmd.Flags().Changed("speed") {
		o.speed = cfg.Replay.Speed
	}
	if !cmd.Flags().Changed("monitor") {
		o.monitorAddr = cfg.Monitor.Addr
	}
}

func newReplayCmd() *cobra.Command {
	var o replayOptions
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "replay [--adapter kind [kind...]]",
		Short: "Replay a capture log to one or more endpoints",
		Long: `Loads a capture log and sends it to every listed adapter at once, one
worker per adapter, reproducing the recorded gaps between messages.

--n 0 replays the log once, a positive n sends that many messages (wrapping
to the start of the log), -1 loops until interrupted.

Speed: 0 = back-to-back, 1 = recorded pace, 2 = twice as fast.

Adapters: stdio, pipe, tcp, udp, serial, redis. List them comma-separated
(--adapter tcp,udp) or space-separated after the flag (--adapter tcp udp).`,
		Example: `  mavtape replay --load flight.bin
  mavtape replay --load flight.bin --adapter tcp,udp --tcp 5760 --udp 14550
  mavtape replay --load flight.bin --adapter stdio tcp udp
  mavtape replay --load flight.bin --adapter pipe --n -1
  mavtape replay --load flight.bin --adapter udp --msg-id 0,33 --from-ms 5000 --speed 4`,
		Args: func(cmd *cobra.Command, args []string) error {
			// Bare words are only accepted as further --adapter values.
			if len(args) > 0 && !cmd.Flags().Changed("adapter") {
				return fmt.Errorf("unexpected arguments %q (adapters go after --adapter)", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o.configPath)
			if err != nil {
				return err
			}
			o.applyConfigIfUnset(cmd, cfg)
			o.adapters = append(o.adapters, args...)
			if err := o.endpoints.normalize(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReplay(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), &o)
		},
	}

	cmd.Flags().StringVar(&o.load, "load", d.Replay.Load, "capture log to replay")
	cmd.Flags().StringSliceVar(&o.adapters, "adapter", []string{string(endpoint.KindStdio)}, "comma-separated sinks (stdio, pipe, tcp, udp, serial, redis)")
	cmd.Flags().IntVar(&o.tcpPort, "tcp", d.Replay.TCPPort, "tcp sink port")
	cmd.Flags().IntVar(&o.udpPort, "udp", d.Replay.UDPPort, "udp sink port")
	cmd.Flags().IntVar(&o.n, "n", 0, "messages per adapter (0 = whole log once, -1 = forever)")
	cmd.Flags().Float64Var(&o.speed, "speed", d.Replay.Speed, "replay speed (0 = no pacing, 1 = real time)")
	cmd.Flags().Int64Var(&o.fromMs, "from-ms", 0, "skip records before this capture timestamp")
	cmd.Flags().Int64Var(&o.toMs, "to-ms", 0, "skip records after this capture timestamp (0 = no limit)")
	cmd.Flags().UintSliceVar(&o.msgIDs, "msg-id", nil, "replay only these MAVLink message ids")
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "hide the progress bar")
	cmd.Flags().StringVar(&o.monitorAddr, "monitor", "", "serve a live monitor on this address (e.g. :8090)")
	cmd.Flags().StringVar(&o.configPath, "config", "", "JSON config file (flags override it)")
	o.endpoints.addFlags(cmd)

	return cmd
}

func runReplay(ctx context.Context, out, errOut io.Writer, o *replayOptions) error {
	policy, err := replay.PolicyFromN(o.n)
	if err != nil {
		return fmt.Errorf("--n: %w", err)
	}
	if o.speed < 0 {
		return fmt.Errorf("--speed must be non-negative, got %g", o.speed)
	}
	kinds, err := parseAdapters(o.adapters)
	if err != nil {
		return err
	}

	lg, err := replay.Load(o.load)
	if err != nil {
		return err
	}
	filter := replay.Filter{FromMs: o.fromMs, ToMs: o.toMs}
	for _, id := range o.msgIDs {
		filter.MessageIDs = append(filter.MessageIDs, uint32(id))
	}
	records := filter.Apply(lg.Records())

	jobs, err := buildJobs(kinds, policy, o, out, errOut)
	if err != nil {
		return err
	}

	sends := make([]int64, len(jobs))
	for i, j := range jobs {
		sends[i] = j.Policy.Sends(len(records))
	}
	reporter := progress.New(progress.TotalFor(sends...), progress.Options{
		Writer:      errOut,
		Description: "replay",
		Hidden:      o.noProgress,
	})

	opts := replay.Options{Speed: o.speed, Progress: reporter}
	if o.monitorAddr != "" {
		hub, stopMonitor := startMonitor(ctx, o.monitorAddr, func() any {
			return reporter.Snapshot()
		})
		defer stopMonitor()
		opts.OnSend = func(e replay.Event) {
			hub.Broadcast(monitor.FromReplay(e))
		}
	}

	fmt.Fprintf(errOut, "replaying %d of %d records from %s to %s, %s at %gx\n",
		len(records), lg.Len(), o.load, strings.Join(o.adapters, ","), policy, o.speed)

	results := replay.Run(ctx, records, jobs, opts)
	reporter.Finish()

	fmt.Fprintln(errOut)
	for _, r := range results {
		line := fmt.Sprintf("  %-16s sent %d in %s", r.Job, r.Sent, r.Elapsed.Round(time.Millisecond))
		if r.Err != nil {
			line += fmt.Sprintf(" (%v)", r.Err)
		}
		fmt.Fprintln(errOut, line)
	}
	return replay.FirstError(results)
}

func parseAdapters(list []string) ([]endpoint.Kind, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("--adapter must name at least one adapter")
	}
	seen := make(map[endpoint.Kind]bool)
	var kinds []endpoint.Kind
	for _, a := range list {
		k, err := endpoint.ParseKind(a)
		if err != nil {
			return nil, err
		}
		// Each endpoint belongs to exactly one worker.
		if seen[k] {
			return nil, fmt.Errorf("adapter %q listed twice", k)
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func buildJobs(kinds []endpoint.Kind, policy replay.Policy, o *replayOptions, out, errOut io.Writer) ([]replay.Job, error) {
	var jobs []replay.Job
	for _, k := range kinds {
		port := 0
		switch k {
		case endpoint.KindTCP:
			port = o.tcpPort
		case endpoint.KindUDP:
			port = o.udpPort
		}
		opts := o.endpoints.toOptions(port, errOut, out)
		sink, err := endpoint.NewSink(k, opts)
		if err != nil {
			for _, j := range jobs {
				j.Sink.Close()
			}
			return nil, fmt.Errorf("%s adapter: %w", k, err)
		}
		name := string(k)
		if target := describeTarget(k, opts); target != "" {
			name += " " + target
		}
		jobs = append(jobs, replay.Job{Name: name, Sink: sink, Policy: policy})
	}
	return jobs, nil
}
