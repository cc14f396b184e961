package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
)

type rootFlags struct {
	configPath string
	device     string
	debug      bool
	offline    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "quantum-backend",
		Short:         "Submit circuits to a remote quantum job service and collect results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(logging.WithCorrelationID(cmd.Context(), logging.GenerateCorrelationID()))
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("QBACKEND_CONFIG"), "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&flags.device, "device", "", "Device name (overrides config)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Machine debug mode: nothing is sent to the service")
	cmd.PersistentFlags().BoolVar(&flags.offline, "offline", false, "Use the built-in device listing and record jobs locally")

	cmd.AddCommand(
		newVersionCmd(),
		newDevicesCmd(flags),
		newStateCmd(flags),
		newSubmitCmd(flags),
		newStatusCmd(flags),
		newResultCmd(flags),
		newCancelCmd(flags),
		newPendingCmd(flags),
		newLogoutCmd(flags),
	)
	return cmd
}

// load reads the configuration and applies command-line overrides.
func (f *rootFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.device != "" {
		cfg.Backend.Device = f.device
	}
	if f.debug {
		cfg.Backend.MachineDebug = true
	}
	if f.offline {
		cfg.API.Offline = true
	}
	logging.Setup(cfg.Logging)
	return cfg, nil
}

// open loads the configuration and wires an app from it.
func (f *rootFlags) open() (*app, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quantum-backend %s (%s)\n", Version, GitSHA)
		},
	}
}
