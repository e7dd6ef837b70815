package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fleetops/stagepush/config"
	"github.com/fleetops/stagepush/journal"
	"github.com/fleetops/stagepush/remote"
	"github.com/fleetops/stagepush/stage"
	"github.com/fleetops/stagepush/transfer"
	"github.com/fleetops/stagepush/ui"
)

var pushFlags struct {
	source      string
	dest        string
	host        string
	port        int
	user        string
	keyPath     string
	backupDir   string
	since       time.Duration
	move        bool
	exclude     string
	logDir      string
	journalPath string
	retryFailed bool
	noTUI       bool
	profile     string
	region      string
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push one batch of staged files to the remote destination",
	Long: `Push selects the files currently in the staging directory, optionally
copies them into a local backup directory, then uploads them over a
single remote session. The destination is either a directory on an SFTP
host (--host plus --dest /path) or an S3 location (--dest
s3://bucket/prefix).`,
	RunE: runPush,
}

func init() {
	f := pushCmd.Flags()
	f.StringVar(&pushFlags.source, "source", "", "Local staging directory (required)")
	f.StringVar(&pushFlags.dest, "dest", "", "Remote destination directory or s3://bucket/prefix (required)")
	f.StringVar(&pushFlags.host, "host", "", "SFTP host")
	f.IntVar(&pushFlags.port, "port", 0, "SFTP port")
	f.StringVar(&pushFlags.user, "user", "", "SFTP user")
	f.StringVar(&pushFlags.keyPath, "key", "", "Path to SSH private key")
	f.StringVar(&pushFlags.backupDir, "backup-dir", "", "Copy files here before uploading")
	f.DurationVar(&pushFlags.since, "since", 0, "Only push files modified within this window (e.g. 24h)")
	f.BoolVar(&pushFlags.move, "move", false, "Remove local files after confirmed upload")
	f.StringVar(&pushFlags.exclude, "exclude", "", "Regexp of filenames to skip")
	f.StringVar(&pushFlags.logDir, "log-dir", "", "Directory for audit logs")
	f.StringVar(&pushFlags.journalPath, "journal", "", "Path to the batch journal database")
	f.BoolVar(&pushFlags.retryFailed, "retry-failed", false, "Re-push the failed files of the last batch for this source")
	f.BoolVar(&pushFlags.noTUI, "no-tui", false, "Disable the interactive progress view")
	f.StringVar(&pushFlags.profile, "profile", "", "AWS credentials profile for s3:// destinations")
	f.StringVar(&pushFlags.region, "region", "", "AWS region for s3:// destinations")

	cobra.CheckErr(pushCmd.MarkFlagRequired("source"))
	cobra.CheckErr(pushCmd.MarkFlagRequired("dest"))
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req, dialer, err := buildRequest(cmd)
	if err != nil {
		return err
	}

	eng := buildEngine(stage.NewLocal(""), dialer, cfg)

	journalPath := fallback(cmd, "journal", pushFlags.journalPath, cfg.Paths.JournalPath)
	if journalPath != "" {
		if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
		store, err := journal.Open(journalPath)
		if err != nil {
			return err
		}
		defer store.Close()
		eng.Journal = store

		if pushFlags.retryFailed {
			sel, err := retrySelector(store, req.SourceDir)
			if err != nil {
				return err
			}
			eng.Selector = sel
		}
	} else if pushFlags.retryFailed {
		return fmt.Errorf("--retry-failed requires a journal, set --journal or paths.journalPath")
	}

	tuiEnabled := cfg.UI.Enabled && !pushFlags.noTUI && !debug
	result, runErr := runEngine(ctx, eng, req, tuiEnabled)

	var flushErr *transfer.LogFlushError
	if errors.As(runErr, &flushErr) {
		logger.Warnw("audit log flush failed, lines were not persisted",
			"path", flushErr.Path, "error", flushErr.Err)
	}
	var pf *transfer.PreflightError
	if errors.As(runErr, &pf) {
		return pf
	}
	if result == nil {
		return runErr
	}

	printSummary(result)
	switch result.Status {
	case transfer.BatchCompleted:
		return nil
	default:
		return fmt.Errorf("batch %s finished with status %s", result.BatchID, result.Status)
	}
}

// buildEngine assembles the transfer engine from the merged
// configuration, sizing the copy buffer pool from transfer.bufferSize.
func buildEngine(fs stage.FS, dialer remote.Dialer, c *config.Config) *transfer.Engine {
	eng := transfer.NewEngine(fs, dialer)
	eng.Logger = logger
	eng.Buffers = transfer.NewBufferPool(c.Transfer.BufferSize)
	return eng
}

// buildRequest merges flags over config file values and picks the dialer
// from the destination scheme.
func buildRequest(cmd *cobra.Command) (*transfer.TransferRequest, remote.Dialer, error) {
	req := &transfer.TransferRequest{
		SourceDir:      pushFlags.source,
		BackupDir:      fallback(cmd, "backup-dir", pushFlags.backupDir, cfg.Paths.BackupDir),
		Move:           pushFlags.move,
		ExcludePattern: fallback(cmd, "exclude", pushFlags.exclude, cfg.Transfer.ExcludePattern),
		LogDir:         fallback(cmd, "log-dir", pushFlags.logDir, cfg.Paths.LogDir),
	}
	if pushFlags.since > 0 {
		req.ModifiedAfter = time.Now().Add(-pushFlags.since)
	}

	var dialer remote.Dialer
	if bucket, prefix, ok := splitS3(pushFlags.dest); ok {
		if prefix == "" {
			prefix = "/"
		}
		req.Endpoint = remote.Endpoint{Host: bucket}
		req.DestDir = prefix
		dialer = &remote.S3Dialer{
			Profile: fallback(cmd, "profile", pushFlags.profile, cfg.Remote.Profile),
			Region:  fallback(cmd, "region", pushFlags.region, cfg.Remote.Region),
		}
	} else {
		req.DestDir = pushFlags.dest
		req.Endpoint = remote.Endpoint{
			Host:    fallback(cmd, "host", pushFlags.host, cfg.Remote.Host),
			Port:    fallbackInt(cmd, "port", pushFlags.port, cfg.Remote.Port),
			User:    fallback(cmd, "user", pushFlags.user, cfg.Remote.User),
			KeyPath: fallback(cmd, "key", pushFlags.keyPath, cfg.Remote.KeyPath),
		}
		if cfg.Remote.PasswordEnv != "" {
			req.Endpoint.Password = os.Getenv(cfg.Remote.PasswordEnv)
		}
		if req.Endpoint.Host == "" {
			return nil, nil, fmt.Errorf("--host is required for SFTP destinations")
		}
		sd := remote.NewSFTPDialer()
		if cfg.Remote.DialTimeout > 0 {
			sd.Timeout = cfg.Remote.DialTimeout
		}
		dialer = sd
	}
	return req, dialer, nil
}

// retrySelector returns a candidate selector that re-stats the failed
// files of the most recent batch for sourceDir.
func retrySelector(store journal.Store, sourceDir string) (func(context.Context, stage.FS, *transfer.TransferRequest) ([]*transfer.Candidate, error), error) {
	last, err := store.LastBatchForSource(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("no previous batch for %s: %w", sourceDir, err)
	}
	failed, err := store.FailedFiles(last.ID)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		return nil, fmt.Errorf("batch %s has no failed files to retry", last.ID)
	}
	logger.Infow("retrying failed files from previous batch",
		"batch", last.ID, "count", len(failed))

	return func(ctx context.Context, fs stage.FS, req *transfer.TransferRequest) ([]*transfer.Candidate, error) {
		return transfer.CandidatesFromRecords(ctx, fs, req, failed)
	}, nil
}

// runEngine runs the batch, in the background of a TUI when one is wanted.
func runEngine(ctx context.Context, eng *transfer.Engine, req *transfer.TransferRequest, tuiEnabled bool) (*transfer.BatchResult, error) {
	if !tuiEnabled {
		return eng.Run(ctx, req)
	}

	// The view owns the terminal in raw mode, so ctrl+c reaches it as a
	// key press instead of a signal. Quitting the view must cancel the
	// batch through this context or cancellation is unreachable.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(ui.NewModel(ui.BatchState{}).WithAbort(cancel))
	eng.OnProgress = func(p transfer.Progress) {
		program.Send(ui.UpdateMsg{State: ui.BatchState{
			Total:    p.Total,
			Done:     p.Done,
			Failed:   p.Failed,
			Current:  p.Current,
			Finished: p.Finished,
		}})
	}

	type outcome struct {
		result *transfer.BatchResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := eng.Run(ctx, req)
		done <- outcome{result, err}
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		logger.Warnw("progress view unavailable, batch continues", "error", err)
	} else {
		// The view was dismissed; stop any batch still in flight.
		cancel()
	}
	o := <-done
	return o.result, o.err
}

func printSummary(r *transfer.BatchResult) {
	fmt.Printf("Batch %s: %s\n", r.BatchID, r.Status)
	fmt.Printf("  attempted %d, uploaded %d, failed %d\n", r.Attempted, r.Succeeded, r.Failed)
	if r.LogPath != "" {
		fmt.Printf("  audit log: %s\n", r.LogPath)
	}
}

// fallback returns the flag value when the user set it, the config value
// otherwise.
func fallback(cmd *cobra.Command, name, flagVal, cfgVal string) string {
	if cmd.Flags().Changed(name) || cfgVal == "" {
		return flagVal
	}
	return cfgVal
}

func fallbackInt(cmd *cobra.Command, name string, flagVal, cfgVal int) int {
	if cmd.Flags().Changed(name) || cfgVal == 0 {
		return flagVal
	}
	return cfgVal
}

func splitS3(dest string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(dest, "s3://")
	if !found {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, prefix, true
}
