package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtzgroup/tcpb-go/internal/tcp/replay"
)

func newReplayCommand(a *app) *cobra.Command {
	var dir, address string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Serve a recorded client packet trace to one client",
		Long: `replay loads client_sent.bin and client_recv.bin from --dir, accepts one
client, checks that it sends exactly the recorded frames and answers with
the recorded replies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, replies, err := replay.Load(dir)
			if err != nil {
				return err
			}
			srv, err := replay.NewServer(a.logger(), address, expected, replies, replay.WithTimeout(timeout))
			if err != nil {
				return err
			}
			defer srv.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "replaying %d frames on %s\n", len(expected), srv.Addr())
			if err := srv.Serve(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "trace replayed")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&dir, "dir", ".", "directory holding the trace files")
	flags.StringVar(&address, "address", "127.0.0.1:0", "listen address")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "per-frame timeout")
	return cmd
}
