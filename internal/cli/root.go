package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wesleyorama2/rampant/internal/output"
)

var version = "0.1.0"

// NewRootCmd creates the base command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "rampant",
		Short:   "Run load campaigns driven by execution profiles",
		Version: version,
		Long: `Rampant starts minions against HTTP services following execution profiles:
regular or accelerating launches, progressive volumes, time frames and
percentage stages with graceful or hard completion.

Inspect the starting lines of a profile before running it:
  rampant plan --profile regular --period 1s --per-launch 10 --minions 100

Run a campaign from a configuration file:
  rampant run --config campaign.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(newPlanCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// Execute runs the root command with the process arguments.
// This is called by main.main().
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newLogger returns a development logger in verbose mode, and a logger
// printing warnings and errors to stderr otherwise.
func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		if logger, err := zap.NewDevelopment(); err == nil {
			return logger
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newConsole(cmd *cobra.Command) *output.Console {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewConsole(cmd.OutOrStdout(), noColor)
}
