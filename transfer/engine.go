package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetops/stagepush/audit"
	"github.com/fleetops/stagepush/journal"
	"github.com/fleetops/stagepush/remote"
	"github.com/fleetops/stagepush/stage"
)

// batchState names one step of the batch lifecycle. Transitions are
// logged so an operator can see exactly where an aborted run stopped.
type batchState string

const (
	stateInit           batchState = "Init"
	stateSelecting      batchState = "Selecting"
	stateTeeing         batchState = "Teeing"
	stateSessionOpening batchState = "SessionOpening"
	stateTransferring   batchState = "Transferring"
	stateSessionClosing batchState = "SessionClosing"
	stateDone           batchState = "Done"
	stateAborted        batchState = "Aborted"
)

// Progress is a snapshot handed to the OnProgress callback after every
// per-file outcome.
type Progress struct {
	Total    int
	Done     int
	Failed   int
	Current  string
	Finished bool
}

// Engine orchestrates one batch: select, tee, open session, transfer
// files one at a time, close, flush. The session handle never leaves the
// engine and is driven from a single goroutine.
type Engine struct {
	// FS is the local staging filesystem capability.
	FS stage.FS

	// Dialer establishes the remote session.
	Dialer remote.Dialer

	// Journal, when set, receives batch and per-file records.
	Journal journal.Store

	// Logger is the operational logger. Nil means no operational output;
	// the audit trail is written regardless.
	Logger *zap.SugaredLogger

	// Buffers is the shared copy buffer pool. Nil allocates a default.
	Buffers *BufferPool

	// OnProgress, when set, is invoked after selection and after every
	// per-file outcome. Used by the interactive UI.
	OnProgress func(Progress)

	// Selector, when set, replaces the default directory scan. Used to
	// retry the failed files of an earlier batch.
	Selector func(ctx context.Context, fs stage.FS, req *TransferRequest) ([]*Candidate, error)
}

// NewEngine creates an Engine over the given filesystem and dialer.
func NewEngine(fs stage.FS, dialer remote.Dialer) *Engine {
	return &Engine{FS: fs, Dialer: dialer}
}

func (e *Engine) logger() *zap.SugaredLogger {
	if e.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return e.Logger
}

func (e *Engine) buffers() *BufferPool {
	if e.Buffers == nil {
		e.Buffers = NewBufferPool(0)
	}
	return e.Buffers
}

func (e *Engine) progress(p Progress) {
	if e.OnProgress != nil {
		e.OnProgress(p)
	}
}

// Run executes one batch for the given request.
//
// On a preflight failure the returned result is nil and the error is a
// *PreflightError; the audit log is still flushed and records the abort.
// Otherwise a BatchResult is always returned; if flushing the audit log
// failed, the error is a *LogFlushError accompanying the result rather
// than replacing it.
func (e *Engine) Run(ctx context.Context, req *TransferRequest) (result *BatchResult, err error) {
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	start := time.Now()
	batchID := uuid.NewString()
	logger := e.logger().With("batch", batchID)

	log := audit.New(req.LogDir, start)
	defer func() {
		if ferr := log.Flush(); ferr != nil {
			flushErr := &LogFlushError{Path: log.Path(), Err: ferr}
			logger.Errorw("audit log flush failed", "err", ferr)
			if err == nil {
				err = flushErr
			} else {
				err = errors.Join(err, flushErr)
			}
		}
	}()

	state := stateInit
	setState := func(next batchState) {
		logger.Debugw("state transition", "from", state, "to", next)
		state = next
	}

	log.Append(audit.EventInit, "batch started",
		"batch", batchID,
		"source", req.SourceDir,
		"host", req.Endpoint.Host,
		"dest", req.DestDir,
		"move", req.Move,
	)
	logger.Infow("batch started", "source", req.SourceDir, "host", req.Endpoint.Host, "move", req.Move)

	var rec *Recorder
	if e.Journal != nil {
		rec = NewRecorder(e.Journal, batchID)
		if jerr := rec.BatchStarted(req, start, log.Path()); jerr != nil {
			logger.Warnw("journal write failed", "err", jerr)
		}
	}

	aborted := false
	sessionOpen := false
	abort := func(pf *PreflightError) (*BatchResult, error) {
		aborted = true
		if !sessionOpen {
			setState(stateAborted)
		}
		log.Append(audit.EventError, "batch aborted", "reason", pf.Error())
		logger.Errorw("batch aborted", "kind", pf.Kind, "err", pf.Err)
		if rec != nil {
			if jerr := rec.BatchAborted(req, start, time.Now(), log.Path()); jerr != nil {
				logger.Warnw("journal write failed", "err", jerr)
			}
		}
		return nil, pf
	}

	// Candidate selection.
	setState(stateSelecting)
	sel := e.Selector
	if sel == nil {
		sel = SelectCandidates
	}
	candidates, serr := sel(ctx, e.FS, req)
	if serr != nil {
		var pf *PreflightError
		if errors.As(serr, &pf) {
			return abort(pf)
		}
		return abort(&PreflightError{Kind: KindDirectoryNotFound, Path: req.SourceDir, Err: serr})
	}

	for _, c := range candidates {
		if c.Excluded {
			log.Append(audit.EventSkipped, c.Name, "reason", "hold pattern")
		}
	}

	included := Included(candidates)
	logger.Infow("candidates selected", "total", len(candidates), "included", len(included))
	e.progress(Progress{Total: len(included)})

	finish := func(outcomes []*Outcome, cancelled bool) *BatchResult {
		res := summarize(batchID, log.Path(), outcomes, cancelled)
		log.Append(audit.EventDone, "batch finished",
			"status", res.Status,
			"attempted", res.Attempted,
			"succeeded", res.Succeeded,
			"failed", res.Failed,
		)
		logger.Infow("batch finished", "status", res.Status,
			"attempted", res.Attempted, "succeeded", res.Succeeded, "failed", res.Failed,
			"elapsed", time.Since(start).Round(time.Millisecond))
		if rec != nil {
			if jerr := rec.BatchFinished(req, start, time.Now(), res); jerr != nil {
				logger.Warnw("journal write failed", "err", jerr)
			}
		}
		e.progress(Progress{Total: res.Attempted, Done: res.Succeeded, Failed: res.Failed, Finished: true})
		return res
	}

	if len(included) == 0 {
		setState(stateDone)
		return finish(nil, false), nil
	}

	// Backup tee: all copies durably written before the session opens.
	if req.BackupDir != "" {
		setState(stateTeeing)
		if terr := Tee(ctx, e.FS, included, req.BackupDir, e.buffers()); terr != nil {
			var pf *PreflightError
			if errors.As(terr, &pf) {
				return abort(pf)
			}
			return abort(&PreflightError{Kind: KindBackupWriteFailed, Err: terr})
		}
		logger.Infow("backup tee complete", "dir", req.BackupDir, "files", len(included))
	}

	// Session open and destination verification.
	setState(stateSessionOpening)
	sess, derr := e.Dialer.Dial(ctx, req.Endpoint)
	if derr != nil {
		return abort(&PreflightError{Kind: KindConnectionError, Host: req.Endpoint.Host, Err: derr})
	}
	sessionOpen = true
	defer func() {
		setState(stateSessionClosing)
		if cerr := sess.Close(); cerr != nil {
			logger.Warnw("session close failed", "err", cerr)
		}
		if aborted {
			setState(stateAborted)
		} else {
			setState(stateDone)
		}
	}()

	exists, verr := sess.Verify(ctx, req.DestDir)
	if verr != nil {
		return abort(&PreflightError{Kind: KindConnectionError, Host: req.Endpoint.Host, Path: req.DestDir, Err: verr})
	}
	if !exists {
		return abort(&PreflightError{Kind: KindDestinationNotFound, Host: req.Endpoint.Host, Path: req.DestDir})
	}

	// Per-file loop. The session is single-threaded, so files go one at
	// a time; one failure never stops the rest.
	setState(stateTransferring)
	outcomes := make([]*Outcome, 0, len(included))
	done, failed := 0, 0

	for _, c := range included {
		o := newOutcome(c)
		outcomes = append(outcomes, o)

		if rec != nil {
			if jerr := rec.FilePending(c); jerr != nil {
				logger.Warnw("journal write failed", "err", jerr)
			}
		}

		if cerr := ctx.Err(); cerr != nil {
			o.markFailed(cerr)
			failed++
			log.Append(audit.EventFailed, c.Name, "err", "batch cancelled")
		} else {
			e.progress(Progress{Total: len(included), Done: done, Failed: failed, Current: c.Name})

			if terr := e.transferOne(ctx, sess, req, c); terr != nil {
				o.markFailed(terr)
				failed++
				log.Append(audit.EventFailed, c.Name, "err", terr.Error())
				logger.Warnw("file transfer failed", "file", c.Name, "err", terr)
			} else {
				o.markUploaded()
				done++
				log.Append(audit.EventUploaded, c.Name, "bytes", c.Size, "crc64", c.Checksum)
				logger.Debugw("file uploaded", "file", c.Name, "bytes", c.Size)
			}
		}

		if rec != nil {
			if jerr := rec.FileDone(o); jerr != nil {
				logger.Warnw("journal write failed", "err", jerr)
			}
		}
	}

	if ctx.Err() != nil {
		aborted = true
	}
	return finish(outcomes, ctx.Err() != nil), nil
}

// transferOne streams one candidate to the remote session and, for moves,
// removes the local copy only after the upload is confirmed.
func (e *Engine) transferOne(ctx context.Context, sess remote.Session, req *TransferRequest, c *Candidate) error {
	r, err := e.FS.OpenRead(ctx, c.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.Path, err)
	}

	cr := NewChecksumReader(r)
	remotePath := joinRemote(req.DestDir, c.Name)

	putErr := sess.Put(ctx, remotePath, cr)
	closeErr := r.Close()
	if putErr != nil {
		return putErr
	}
	if closeErr != nil {
		return closeErr
	}

	c.Checksum = cr.Checksum()

	if req.Move {
		if err := e.FS.Remove(ctx, c.Path); err != nil {
			// The remote copy landed; report the stuck local file rather
			// than pretending the move completed.
			return fmt.Errorf("uploaded but failed to remove local %s: %w", c.Path, err)
		}
	}
	return nil
}

// joinRemote joins a destination directory and filename with forward
// slashes regardless of the local OS.
func joinRemote(destDir, name string) string {
	return strings.TrimRight(destDir, "/") + "/" + name
}
