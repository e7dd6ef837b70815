package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetops/stagepush/config"
)

var (
	cfgPath string
	debug   bool

	cfg    *config.Config
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "stagepush",
	Short: "Push staged files to a remote file server",
	Long: `stagepush sweeps a local staging directory and pushes its files to a
remote destination over SFTP or to an S3 bucket, with an optional local
backup copy taken before anything leaves the machine. Every run writes
an append-only audit log and records its outcome in a local journal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(debug)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.DisableCaller = true
		l, err = zcfg.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
