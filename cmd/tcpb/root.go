package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mtzgroup/tcpb-go/internal/client"
	"github.com/mtzgroup/tcpb-go/internal/config"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/global/logger"
)

// app is shared by every subcommand
type app struct {
	v       *viper.Viper
	envName string
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:           "tcpb",
		Short:         "tcpb serves and submits quantum chemistry jobs over the TeraChem protobuf protocol",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # serve on port 54321 with the analytic demo engine and the monitor on :8082
  tcpb serve --port 54321 --http :8082

  # ask a server whether it can take a job
  tcpb available localhost 54321

  # run a gradient from a TeraChem input file
  tcpb compute localhost 54321 --tcfile tc.in --run gradient
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitReader(a.envName); err != nil {
				return err
			}
			if err := a.bind(cmd, map[string]string{"log.level": "log-level"}); err != nil {
				return err
			}
			if err := logger.SetLevel(a.v.GetString("log.level")); err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.envName, "env", "", "load <env>.env before reading TCPB_* variables (default .env)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(a),
		newAvailableCommand(a),
		newComputeCommand(a),
		newReplayCommand(a),
		newAPICommand(a),
		newTokenCommand(a),
	)
	return cmd
}

// bind maps config keys to the running command's flags. Binding happens per
// invocation so subcommands sharing a key do not shadow each other.
func (a *app) bind(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		f := lookupFlag(cmd, name)
		if f == nil {
			return fmt.Errorf("flag --%s not defined", name)
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

func (a *app) logger() primary.Logger {
	return logger.Logger
}

// addClientFlags registers the flags every client-side command shares
func addClientFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Duration("timeout", 0, "socket timeout (default 15s)")
	flags.Duration("poll-delay", 0, "sleep between completion polls (default 1s)")
	flags.Duration("retry-delay", 0, "sleep between busy submissions (default 1s)")
	flags.String("trace", "", "record packet traces into this directory")
}

func (a *app) clientConfig(cmd *cobra.Command) (*config.ClientConfig, error) {
	err := a.bind(cmd, map[string]string{
		"client.timeout":    "timeout",
		"client.polldelay":  "poll-delay",
		"client.retrydelay": "retry-delay",
		"client.tracedir":   "trace",
	})
	if err != nil {
		return nil, err
	}
	return config.NewClientConfig(a.v), nil
}

func (a *app) clientOptions(cfg *config.ClientConfig) []client.Option {
	options := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithPollDelay(cfg.PollDelay),
		client.WithRetryDelay(cfg.RetryDelay),
		client.WithLogger(a.logger()),
	}
	if cfg.TraceDir != "" {
		options = append(options, client.WithTrace(cfg.TraceDir))
	}
	return options
}

// hostPort parses the HOST PORT positional arguments
func hostPort(args []string) (string, int, error) {
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", args[1])
	}
	return args[0], port, nil
}
