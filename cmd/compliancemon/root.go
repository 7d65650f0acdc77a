package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/logging"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
	log        *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "compliancemon",
		Short:         "Device policy compliance monitor",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsConfig(cmd) {
				return nil
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			c.log = logging.New(cfg.Logging, cfg.Service.Name, version)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				c.log.Close() //nolint:errcheck // best-effort flush of the log file
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", getConfigPath(), "path to config file")

	root.AddCommand(
		c.newServeCmd(),
		c.newMigrateCmd(),
		c.newStatusCmd(),
		c.newReportCmd(),
		c.newResetAttemptsCmd(),
		c.newClearViolationsCmd(),
	)

	return root
}

// needsConfig reports whether cmd operates on the stores. Help and shell
// completion run without a config file.
func needsConfig(cmd *cobra.Command) bool {
	if cmd.Name() == "help" {
		return false
	}
	return cmd.Parent() == nil || cmd.Parent().Name() != "completion"
}
