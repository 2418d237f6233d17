// evalbuilder builds browser-agent eval tasks interactively: it snapshots a
// page before and after an operator performs the target action, derives the
// observed changes, and drives a code-generation oracle to produce a
// validation script that is regression-tested against every recorded example
// before it is accepted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BrowserOperator/web-agent/internal/config"
	"github.com/BrowserOperator/web-agent/internal/logging"
)

var (
	cfgPath   string
	workspace string
	verbose   bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "evalbuilder",
	Short: "Build and maintain browser-agent eval tasks with synthesized validation scripts",
	Long: `evalbuilder captures before/after page snapshots around a human-performed
action, reduces them to typed DOM changes, and asks a code-generation oracle
for a JavaScript validation script. A script is only accepted after it
reproduces the expected result on every labeled example in the task's corpus.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if workspace != "" {
			cfg.Workspace = workspace
		}
		return logging.Initialize(cfg.Workspace, cfg.Debug || verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "evalbuilder.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(buildCmd, extendCmd, regressCmd, corpusCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
