package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/machinefabric/pdbridge-go/config"
	"github.com/machinefabric/pdbridge-go/script"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// options holds command line overrides. Zero values mean "not given".
type options struct {
	configPath  string
	inlets      int
	outlets     int
	codec       string
	logLevel    string
	strict      bool
	strictSet   bool
	metricsAddr string

	script   string
	hostArgs []string
}

// execute runs the command line and returns the process exit code
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	exitCode := 0
	root := newRootCmd(stdin, stdout, stderr, &exitCode)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "pdbridge: %v\n", err)
		return 2
	}
	return exitCode
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pdbridge [flags] <script> [-- host-args...]",
		Short: "Run a script as a message handler for the host",
		Long: "Reads host messages from stdin, dispatches them to the handlers the script registers, " +
			"and writes outlet, log and error records to stdout. Diagnostics go to stderr.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.script = args[0]
				opts.hostArgs = hostArgs(args[1:])
			}
			opts.strictSet = cmd.Flags().Changed("strict")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			*exitCode = run(ctx, opts, stdin, stdout, stderr)
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (.toml, .yaml, .json); defaults to $"+config.EnvConfigPath)
	flags.IntVar(&opts.inlets, "inlets", 0, "number of host inlets")
	flags.IntVar(&opts.outlets, "outlets", 0, "number of host outlets")
	flags.StringVar(&opts.codec, "codec", "", "wire codec: jsonl or cbor")
	flags.StringVar(&opts.logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
	flags.BoolVar(&opts.strict, "strict", false, "validate inbound records against the message schema")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	// everything after the script path belongs to the host, negative numbers included
	flags.SetInterspersed(false)

	root.AddCommand(newSchemaCmd(), newVersionCmd())
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetContext(context.Background())
	return root
}

// hostArgs drops the "--" separator that flag parsing leaves in place once
// it stops at the script path
func hostArgs(rest []string) []string {
	if len(rest) > 0 && rest[0] == "--" {
		return rest[1:]
	}
	return rest
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdbridge %s (script API %s)\n", version, script.APIVersion)
		},
	}
}
