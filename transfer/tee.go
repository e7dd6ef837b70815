package transfer

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/fleetops/stagepush/stage"
)

// teeWorkers is the number of concurrent local copy workers. The tee only
// touches local disks, so a small fixed pool is enough.
const teeWorkers = 4

// Tee duplicates every included candidate into backupDir before any
// remote work happens. Filenames and modification times are preserved,
// and each candidate's CRC64 is recorded as its bytes stream through.
//
// A missing backupDir is a no-op. The first failing copy aborts the tee
// and is returned as a BACKUP_WRITE_FAILED preflight error; a partial
// backup is acceptable, an un-backed-up remote mutation is not.
// Cancellation of the caller's context is reported as BATCH_CANCELLED,
// not as a backup failure.
func Tee(ctx context.Context, fs stage.FS, candidates []*Candidate, backupDir string, buffers *BufferPool) error {
	if backupDir == "" {
		return nil
	}
	if buffers == nil {
		buffers = NewBufferPool(0)
	}

	included := Included(candidates)
	if len(included) == 0 {
		return nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *Candidate)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel() // stop handing out further copies
		})
	}

	workers := teeWorkers
	if workers > len(included) {
		workers = len(included)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					return
				}
				if err := copyToBackup(ctx, fs, c, backupDir, buffers); err != nil {
					fail(&PreflightError{Kind: KindBackupWriteFailed, Path: c.Path, Err: err})
					return
				}
			}
		}()
	}

	for _, c := range included {
		select {
		case <-ctx.Done():
		case jobs <- c:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	// A caller cancellation is not a backup failure; classify it before
	// any copy error it may have triggered.
	if err := parent.Err(); err != nil {
		return &PreflightError{Kind: KindBatchCancelled, Err: err}
	}
	if firstErr != nil {
		return firstErr
	}
	return nil
}

func copyToBackup(ctx context.Context, fs stage.FS, c *Candidate, backupDir string, buffers *BufferPool) error {
	r, err := fs.OpenRead(ctx, c.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	backupPath := filepath.Join(backupDir, c.Name)
	w, err := fs.Create(ctx, backupPath)
	if err != nil {
		return err
	}

	cr := NewChecksumReader(r)
	buf := buffers.Get()
	_, copyErr := io.CopyBuffer(w, cr, *buf)
	buffers.Put(buf)

	if copyErr != nil {
		w.Close()
		return copyErr
	}
	if err := w.Close(); err != nil {
		return err
	}

	c.Checksum = cr.Checksum()

	// Ignore errors on preserving the timestamp
	_ = fs.Chtimes(ctx, backupPath, c.ModTime)
	return nil
}
