package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetops/stagepush/journal"
)

var historyFlags struct {
	journalPath string
	limit       int
	files       string
	failedOnly  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past batches recorded in the journal",
	Long: `History lists the batches recorded in the local journal, newest first.
With --files it lists the per-file outcomes of one batch instead.`,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.journalPath, "journal", "", "Path to the batch journal database")
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum number of batches to show")
	f.StringVar(&historyFlags.files, "files", "", "Show the file records of this batch ID")
	f.BoolVar(&historyFlags.failedOnly, "failed", false, "With --files, show only failed files")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := fallback(cmd, "journal", historyFlags.journalPath, cfg.Paths.JournalPath)
	if path == "" {
		return fmt.Errorf("no journal path, set --journal or paths.journalPath")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal not found at %s", path)
	}

	store, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if historyFlags.files != "" {
		return printFiles(store, historyFlags.files, historyFlags.failedOnly)
	}
	return printBatches(store, historyFlags.limit)
}

func printBatches(store journal.Store, limit int) error {
	batches, err := store.ListBatches()
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("No batches recorded.")
		return nil
	}
	if limit > 0 && len(batches) > limit {
		batches = batches[:limit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tSTARTED\tSOURCE\tDEST\tSTATUS\tOK\tFAILED")
	for _, b := range batches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s:%s\t%s\t%d\t%d\n",
			b.ID,
			b.StartedAt.Local().Format(time.DateTime),
			b.SourceDir,
			b.Host, b.DestDir,
			b.Status, b.Succeeded, b.Failed)
	}
	return w.Flush()
}

func printFiles(store journal.Store, batchID string, failedOnly bool) error {
	var (
		files []*journal.FileRecord
		err   error
	)
	if failedOnly {
		files, err = store.FailedFiles(batchID)
	} else {
		files, err = store.ListFiles(batchID)
	}
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No file records for batch %s.\n", batchID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tSTATUS\tERROR")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", f.Path, f.Size, f.Status, f.Error)
	}
	return w.Flush()
}
