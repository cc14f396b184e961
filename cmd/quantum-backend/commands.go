package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/backend"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/results"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/tables"
)

func newDevicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices the service offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			devices, err := a.backend.AvailableDevices(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tQUBITS\tBATCHING\tWASM\tMAX SHOTS\tSYNTAX CHECKER")
			for _, d := range devices {
				maxShots := "-"
				if d.Capabilities.MaxShots != nil {
					maxShots = fmt.Sprint(*d.Capabilities.MaxShots)
				}
				checker := d.Capabilities.SyntaxChecker
				if checker == "" {
					checker = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%t\t%t\t%s\t%s\n", d.Name, d.NQubits, d.Capabilities.Batching, d.Capabilities.Wasm, maxShots, checker)
			}
			return w.Flush()
		},
	}
}

func newStateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state <device>",
		Short: "Print the operational state of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.backend.DeviceState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func newSubmitCmd(flags *rootFlags) *cobra.Command {
	var (
		programPath string
		wasmPath    string
		shots       int
		opts        backend.SubmitOptions
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a compiled program and print its handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := os.ReadFile(programPath)
			if err != nil {
				return fmt.Errorf("read program: %w", err)
			}
			if wasmPath != "" {
				if opts.Wasm, err = os.ReadFile(wasmPath); err != nil {
					return fmt.Errorf("read wasm module: %w", err)
				}
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.backend.SubmitProgram(cmd.Context(), string(program), shots, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&programPath, "program", "", "Path to the program text")
	cmd.Flags().StringVar(&wasmPath, "wasm", "", "Path to a WebAssembly module the program calls")
	cmd.Flags().IntVar(&shots, "shots", 0, "Number of shots")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Job name")
	cmd.Flags().StringVar(&opts.Group, "group", "", "Billing group (overrides config)")
	cmd.Flags().BoolVar(&opts.NoOpt, "no-opt", false, "Disable server-side optimisation")
	cmd.Flags().BoolVar(&opts.Noiseless, "noiseless", false, "Run emulator jobs without the noise model")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("shots")
	return cmd
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <handle>",
		Short: "Print the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := backend.ParseHandle(args[0])
			if err != nil {
				return err
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.backend.CircuitStatus(cmd.Context(), h)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", st.State, st.Message)
			return nil
		},
	}
}

func newResultCmd(flags *rootFlags) *cobra.Command {
	var (
		opts       backend.ResultOptions
		parquetDir string
	)

	cmd := &cobra.Command{
		Use:   "result <handle>...",
		Short: "Wait for jobs and print their shot counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handles := make([]backend.Handle, len(args))
			for i, arg := range args {
				h, err := backend.ParseHandle(arg)
				if err != nil {
					return err
				}
				handles[i] = h
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			res := make([]*results.Result, len(handles))
			g, gctx := errgroup.WithContext(cmd.Context())
			for i, h := range handles {
				g.Go(func() error {
					r, err := a.backend.Result(gctx, h, opts)
					if err != nil {
						return err
					}
					res[i] = r
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, h := range handles {
				fmt.Fprintf(out, "%s\n", jobLabel(h))
				printCounts(out, res[i].Shots)
				if parquetDir == "" {
					continue
				}
				path, checksum, err := writeParquet(parquetDir, a.backend.Device(), h, res[i].Shots)
				if err != nil {
					return err
				}
				log.Printf("[main] wrote %s (%s)", path, checksum)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Give up waiting after this long (0 waits indefinitely)")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "Interval between status polls (0 uses the session default)")
	cmd.Flags().StringVar(&parquetDir, "parquet", "", "Directory to write one Parquet file of shots per job")
	return cmd
}

func newCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <handle>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := backend.ParseHandle(args[0])
			if err != nil {
				return err
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.backend.Cancel(cmd.Context(), h)
		},
	}
}

func newPendingCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List handles issued by earlier runs that have not reached a terminal state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.journal.Load(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBMITTED\tDEVICE\tSHOTS\tHANDLE")
			for _, e := range entries {
				h := backend.Handle{JobID: e.JobID, PostProcess: e.PostProcess}.Normalize()
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.SubmittedAt.Format(time.RFC3339), e.Device, e.Shots, h.String())
			}
			return w.Flush()
		},
	}
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard stored session tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			a.backend.Logout()
			return nil
		},
	}
}

func jobLabel(h backend.Handle) string {
	if h.IsDebug() {
		return "debug job"
	}
	return "job " + h.JobID
}

func printCounts(w io.Writer, table results.ShotTable) {
	counts := table.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %d\n", k, counts[k])
	}
}

// writeParquet writes table to dir and returns the file path and its
// checksum.
func writeParquet(dir, device string, h backend.Handle, table results.ShotTable) (string, string, error) {
	jobID := h.JobID
	if h.IsDebug() {
		jobID = "debug"
	}
	cfg := tables.DefaultParquetConfig()
	cfg.Device = device

	data, err := tables.WriteShots(jobID, cfg, table)
	if err != nil {
		return "", "", fmt.Errorf("encode shots for %s: %w", jobID, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create %s: %w", dir, err)
	}
	name := strings.NewReplacer("/", "_", "(", "_", ")", "", ",", "_", " ", "").Replace(jobID)
	path := filepath.Join(dir, name+".parquet")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, tables.ComputeChecksum(data), nil
}
