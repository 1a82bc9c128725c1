package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtzgroup/tcpb-go/internal/client"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/input"
)

func newAvailableCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "available HOST PORT",
		Short: "Ask a server whether it can accept a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPort(args)
			if err != nil {
				return err
			}
			cfg, err := a.clientConfig(cmd)
			if err != nil {
				return err
			}

			c, err := client.Dial(cmd.Context(), host, port, a.clientOptions(cfg)...)
			if err != nil {
				return err
			}
			defer c.Close()

			available, err := c.IsAvailable(cmd.Context())
			if err != nil {
				return err
			}
			if available {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is available\n", c.Address())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is busy\n", c.Address())
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newComputeCommand(a *app) *cobra.Command {
	var tcfile, xyzfile, runName, saveTC string
	cmd := &cobra.Command{
		Use:   "compute HOST PORT",
		Short: "Run one job built from a TeraChem input file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPort(args)
			if err != nil {
				return err
			}
			cfg, err := a.clientConfig(cmd)
			if err != nil {
				return err
			}

			in, err := input.FromTCFile(tcfile, xyzfile, "")
			if err != nil {
				return err
			}
			mode := strings.ToLower(runName)
			switch mode {
			case "":
				mode = strings.ToLower(in.Run.String())
			case "forces":
				in.Run = domain.RunGradient
			default:
				run, err := domain.ParseRunType(runName)
				if err != nil {
					return err
				}
				in.Run = run
			}
			if saveTC != "" {
				if err := input.WriteTCFile(in, saveTC, saveTC+".xyz"); err != nil {
					return err
				}
			}

			c, err := client.Dial(cmd.Context(), host, port, a.clientOptions(cfg)...)
			if err != nil {
				return err
			}
			defer c.Close()

			return compute(cmd, c, in, mode)
		},
	}
	addClientFlags(cmd)
	flags := cmd.Flags()
	flags.StringVar(&tcfile, "tcfile", "", "TeraChem input file")
	flags.StringVar(&xyzfile, "xyz", "", "geometry file (default: the coordinates keyword)")
	flags.StringVar(&runName, "run", "", "override the run type: energy, gradient, forces, coupling or ci_vec_overlap")
	flags.StringVar(&saveTC, "save-tc", "", "write the submitted input back out as a TC file")
	_ = cmd.MarkFlagRequired("tcfile")
	return cmd
}

// compute runs in the way mode asks: energy, gradient, forces, or the raw
// job for any other run type
func compute(cmd *cobra.Command, c *client.Client, in *domain.JobInput, mode string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	qm := make([]float64, 3*in.NumAtoms())
	var mm []float64
	if n := in.NumMMAtoms(); n > 0 {
		mm = make([]float64, 3*n)
	}

	switch mode {
	case "gradient":
		energy, out, err := c.ComputeGradient(ctx, in, qm, mm)
		if err != nil {
			return err
		}
		printResult(w, "Gradient", in.Mol.Atoms, energy, qm, mm)
		printCharges(w, out)
	case "forces":
		energy, out, err := c.ComputeForces(ctx, in, qm, mm)
		if err != nil {
			return err
		}
		printResult(w, "Forces", in.Mol.Atoms, energy, qm, mm)
		printCharges(w, out)
	case "energy":
		energy, out, err := c.ComputeEnergy(ctx, in)
		if err != nil {
			return err
		}
		printResult(w, "", nil, energy, nil, nil)
		printCharges(w, out)
	default:
		out, err := c.ComputeJobSync(ctx, in)
		if err != nil {
			return err
		}
		for i, e := range out.Energy {
			fmt.Fprintf(w, "Energy[%d]: %.10f\n", i, e)
		}
		printCharges(w, out)
	}
	return nil
}

func printResult(w io.Writer, label string, atoms []string, energy float64, qm, mm []float64) {
	fmt.Fprintf(w, "Energy: %.10f\n", energy)
	if label == "" {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for i, atom := range atoms {
		fmt.Fprintf(w, "%3s\t% .10f % .10f % .10f\n", atom, qm[3*i], qm[3*i+1], qm[3*i+2])
	}
	for i := 0; i+2 < len(mm); i += 3 {
		fmt.Fprintf(w, "%3s\t% .10f % .10f % .10f\n", "MM", mm[i], mm[i+1], mm[i+2])
	}
}

func printCharges(w io.Writer, out *domain.JobOutput) {
	if len(out.Charges) == 0 {
		return
	}
	parts := make([]string, len(out.Charges))
	for i, q := range out.Charges {
		parts[i] = fmt.Sprintf("%.6f", q)
	}
	fmt.Fprintf(w, "Charges: %s\n", strings.Join(parts, " "))
}
