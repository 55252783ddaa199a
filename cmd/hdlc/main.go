// Command hdlc is the compiler/simulator front end: build lowers a named
// circuit and prints its Core IR, dump prints a circuit without running
// it, and sim drives a circuit for a fixed number of cycles and reports
// its output ports, optionally as a rendered per-cycle trace.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hdlc/circuits"
	"github.com/sarchlab/hdlc/config"
	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/sim"
	"github.com/sarchlab/hdlc/simbuild"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hdlc",
		Short: "hdlc — GIR-to-Core-IR retrieval, lowering and cycle simulation",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults if unset)")

	rootCmd.AddCommand(
		newListCmd(),
		newDumpCmd(&configPath),
		newBuildCmd(&configPath),
		newSimCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the built-in named circuits",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range circuits.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newDumpCmd(configPath *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "print a circuit's lowered Core IR",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			logger.Info("dumping circuit", "name", name)

			circuit, err := circuits.Build(name)
			if err != nil {
				return err
			}
			moduleID, ok := circuit.Env.FindModule(circuit.Module)
			if !ok {
				return fmt.Errorf("hdlc: circuit %q built no module named %q", name, circuit.Module)
			}
			fmt.Println(circuit.Env.PrintOp(moduleID))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "circuit", "", "circuit name (see `hdlc list`)")
	return cmd
}

// newBuildCmd shares dump's elaborate-and-print behavior but additionally
// runs simbuild.Build so a build failure (an unlowered op simbuild
// rejects, an unbound port) surfaces before anyone tries to simulate.
func newBuildCmd(configPath *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "elaborate, lower, and print a circuit, validating it builds to a simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}

			circuit, err := circuits.Build(name)
			if err != nil {
				return err
			}
			moduleID, ok := circuit.Env.FindModule(circuit.Module)
			if !ok {
				return fmt.Errorf("hdlc: circuit %q built no module named %q", name, circuit.Module)
			}

			_, inputs, outputs, err := buildSimulator(circuit)
			if err != nil {
				return fmt.Errorf("hdlc: building circuit %q: %w", name, err)
			}
			logger.Info("built circuit", "name", name, "inputs", inputs, "outputs", outputs)

			fmt.Println(circuit.Env.PrintOp(moduleID))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "circuit", "", "circuit name (see `hdlc list`)")
	return cmd
}

func buildSimulator(circuit *circuits.Circuit) (*sim.Simulator, []string, []string, error) {
	return simbuild.Build(circuit.Env, circuit.Module)
}

func newSimCmd(configPath *string) *cobra.Command {
	var name string
	var cycles int
	var inputFlags []string
	var trace bool

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "build and run a named circuit for a fixed number of cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}

			circuit, err := circuits.Build(name)
			if err != nil {
				return err
			}
			s, inputNames, outputNames, err := buildSimulator(circuit)
			if err != nil {
				return fmt.Errorf("hdlc: building circuit %q: %w", name, err)
			}
			logger.Info("running circuit", "name", name, "cycles", cycles)

			widths, err := portWidths(circuit)
			if err != nil {
				return err
			}
			pokes, err := parseInputs(inputFlags, widths)
			if err != nil {
				return err
			}

			var tr *sim.Trace
			if trace {
				watched := append(append([]string{}, inputNames...), outputNames...)
				tr = sim.NewTrace(watched...)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			err = s.Run(ctx, 1, func(c sim.Coro) error {
				for port, v := range pokes {
					c.KeepPoke(port, v)
				}
				for i := 0; i < cycles; i++ {
					if err := c.Step(ctx); err != nil {
						return err
					}
					if tr != nil {
						tr.Capture(s)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			if tr != nil {
				tr.WriteTo(os.Stdout)
			}
			for _, out := range outputNames {
				fmt.Printf("%s = %s\n", out, sim.FormatStateData(s.Peek(out)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "circuit", "", "circuit name (see `hdlc list`)")
	cmd.Flags().IntVar(&cycles, "cycles", 1, "number of cycles to step")
	cmd.Flags().StringArrayVar(&inputFlags, "input", nil, "name=value, repeatable; value is decimal or 0b/0x prefixed")
	cmd.Flags().BoolVar(&trace, "trace", false, "render a per-cycle waveform table of every IO port")
	return cmd
}

func portWidths(circuit *circuits.Circuit) (map[string]int, error) {
	moduleID, ok := circuit.Env.FindModule(circuit.Module)
	if !ok {
		return nil, fmt.Errorf("hdlc: circuit %q built no module named %q", circuit.Name, circuit.Module)
	}
	inputs, _ := circuit.Env.ModulePorts(moduleID)
	widths := make(map[string]int, len(inputs))
	for _, id := range inputs {
		ent, ok := circuit.Env.GetEntity(id)
		if !ok {
			continue
		}
		if u, ok := ent.Typ.(ir.UInt); ok {
			widths[ent.Name] = u.Width
		} else {
			widths[ent.Name] = 1 // Clock and other 1-bit-addressed types
		}
	}
	return widths, nil
}

func parseInputs(flags []string, widths map[string]int) (map[string]*sim.Bits, error) {
	pokes := make(map[string]*sim.Bits, len(flags))
	for _, flag := range flags {
		name, raw, ok := strings.Cut(flag, "=")
		if !ok {
			return nil, fmt.Errorf("hdlc: --input %q must be name=value", flag)
		}
		width, ok := widths[name]
		if !ok {
			return nil, fmt.Errorf("hdlc: unknown input port %q", name)
		}
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("hdlc: --input %s: %w", name, err)
		}
		b := sim.NewBits(width, false)
		b.SetInt64(v)
		pokes[name] = b
	}
	return pokes, nil
}
