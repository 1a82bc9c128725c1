package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mtzgroup/tcpb-go/internal/adapter/crypto"
	"github.com/mtzgroup/tcpb-go/internal/config"
)

func newTokenCommand(a *app) *cobra.Command {
	var subject, method string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the monitor (needs TCPB_JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bind(cmd, map[string]string{"jwt.ttl": "ttl"}); err != nil {
				return err
			}
			tokens := crypto.NewJWTService(config.NewJwtConfig(a.v))
			tok, err := tokens.GenerateTokenHMAC(cmd.Context(), method, map[string]interface{}{"sub": subject})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&subject, "sub", "tcpb-monitor", "token subject")
	flags.StringVar(&method, "method", crypto.DefaultMethod, "HMAC signing method")
	flags.Duration("ttl", 0, "token lifetime (default 1h)")
	return cmd
}
