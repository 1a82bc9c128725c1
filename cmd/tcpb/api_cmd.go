package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/mtzgroup/tcpb-go/internal/api"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/input"
)

func newAPICommand(a *app) *cobra.Command {
	var tcfile string
	var steps int
	var stride float64
	cmd := &cobra.Command{
		Use:   "api HOST PORT",
		Short: "Drive a short trajectory through the session API",
		Long: `api connects a session, sets it up from --tcfile and runs --steps gradient
computations, stretching the first atom along x by --stride bohr per step.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPort(args)
			if err != nil {
				return err
			}
			cfg, err := a.clientConfig(cmd)
			if err != nil {
				return err
			}
			in, err := input.FromTCFile(tcfile, "", "")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			s := api.NewSession(api.WithLogger(a.logger()), api.WithClientOptions(a.clientOptions(cfg)...))
			defer s.Finalize()

			if err := s.Connect(ctx, host, port); err != nil {
				return err
			}
			atoms := in.Mol.Atoms
			if err := s.Setup(tcfile, atoms); err != nil {
				return err
			}

			coords := slices.Clone(in.Mol.Xyz)
			grad := make([]float64, len(coords))
			for step := 0; step < steps; step++ {
				energy, err := s.ComputeEnergyGradient(ctx, atoms, coords, grad, nil, nil, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "step %d: energy %.10f |grad| %.6e x0 %.6f A\n",
					step, energy, floats.Norm(grad, 2), coords[0]*domain.BohrToAngstrom)
				coords[0] += stride
			}

			charges := make([]float64, len(atoms))
			if err := s.GetQMCharges(charges); err == nil {
				fmt.Fprintf(w, "charges: %v\n", charges)
			}
			return nil
		},
	}
	addClientFlags(cmd)
	flags := cmd.Flags()
	flags.StringVar(&tcfile, "tcfile", "", "TeraChem input file naming the QM geometry")
	flags.IntVar(&steps, "steps", 3, "number of gradient steps")
	flags.Float64Var(&stride, "stride", 0.01, "x displacement of the first atom per step, in bohr")
	_ = cmd.MarkFlagRequired("tcfile")
	return cmd
}
