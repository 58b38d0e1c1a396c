package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/machinefabric/pdbridge-go/bridge"
	"github.com/machinefabric/pdbridge-go/config"
	"github.com/machinefabric/pdbridge-go/logger"
	"github.com/machinefabric/pdbridge-go/metrics"
	"github.com/machinefabric/pdbridge-go/script"
	"github.com/machinefabric/pdbridge-go/wire"
)

// run is the process contract: ready first, then either a startup error
// record and exit 1, or the transport loop until end of input
func run(ctx context.Context, opts *options, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, cfgErr := config.Resolve(opts.configPath)
	if cfgErr == nil {
		cfgErr = applyFlags(&cfg, opts)
	}
	if cfgErr != nil {
		// the host still expects ready before any error record
		rt := bridge.NewRuntime(stdin, stdout)
		rt.Ready()
		rt.Error(fmt.Sprintf("Invalid configuration: %v", cfgErr))
		return 1
	}

	log, closer, err := logger.NewWithWriter(cfg.Logging, stderr)
	if err != nil {
		rt := bridge.NewRuntime(stdin, stdout)
		rt.Ready()
		rt.Error(fmt.Sprintf("Invalid configuration: %v", err))
		return 1
	}
	defer closer.Close()
	slog.SetDefault(log)
	log = log.With("component", "cmd.pdbridge")

	codec, err := wire.CodecByName(cfg.Protocol.Codec)
	if err != nil {
		// validated above; unreachable unless the codec table changes
		log.Error("Codec unavailable", "error", err)
		return 1
	}

	host := bridge.HostInfo{
		Inlets:    cfg.Host.Inlets,
		Outlets:   cfg.Host.Outlets,
		Arguments: make([]wire.Value, 0, len(opts.hostArgs)),
	}
	for _, word := range opts.hostArgs {
		host.Arguments = append(host.Arguments, wire.ParseAtom(word))
	}

	runtimeOpts := []bridge.Option{
		bridge.WithCodec(codec),
		bridge.WithLimits(cfg.Protocol.Limits()),
		bridge.WithStrictSchema(cfg.Protocol.Strict),
		bridge.WithReadBuffer(cfg.Protocol.ReadBufferBytes),
		bridge.WithHostInfo(host),
		bridge.WithLogger(log),
	}

	if cfg.Metrics.Enabled {
		collector := metrics.New()
		runtimeOpts = append(runtimeOpts, bridge.WithObserver(collector))
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Address, log); err != nil {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	rt := bridge.NewRuntime(stdin, stdout, runtimeOpts...)
	rt.Ready()

	if opts.script == "" {
		rt.Error("No script specified")
		return 1
	}

	if err := script.Load(opts.script, rt); err != nil {
		log.Error("Failed to load script", "path", opts.script, "error", err)
		rt.Error("Failed to load script: " + loadReason(err))
		return 1
	}

	log.Info("Script loaded",
		"path", opts.script,
		"codec", codec.Name(),
		"selectors", strings.Join(rt.Registry().Selectors(), ","),
	)

	if err := rt.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Stopped by signal")
			return 0
		}
		log.Error("Transport loop failed", "error", err)
		return 1
	}

	log.Debug("Input closed")
	return 0
}

// applyFlags layers command line overrides over the resolved configuration
func applyFlags(cfg *config.Config, opts *options) error {
	if opts.inlets > 0 {
		cfg.Host.Inlets = opts.inlets
	}
	if opts.outlets > 0 {
		cfg.Host.Outlets = opts.outlets
	}
	if opts.codec != "" {
		cfg.Protocol.Codec = strings.ToLower(opts.codec)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(opts.logLevel)
	}
	if opts.strictSet {
		cfg.Protocol.Strict = opts.strict
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = opts.metricsAddr
	}
	return cfg.Validate()
}

// loadReason is the human readable cause of a load failure
func loadReason(err error) string {
	var se *script.ScriptError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
