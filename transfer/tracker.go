package transfer

import (
	"time"

	"github.com/fleetops/stagepush/journal"
)

// batchRunning is the journal status of a batch that has not finished.
const batchRunning = "Running"

// Recorder persists batch and file outcomes to the journal as the engine
// progresses, so an aborted process still leaves a usable history and a
// later run can retry exactly the files that failed.
type Recorder struct {
	store   journal.Store
	batchID string
}

// NewRecorder creates a Recorder writing under the given batch ID.
func NewRecorder(store journal.Store, batchID string) *Recorder {
	return &Recorder{store: store, batchID: batchID}
}

// BatchStarted writes the initial batch summary.
func (r *Recorder) BatchStarted(req *TransferRequest, start time.Time, logPath string) error {
	return r.store.SaveBatch(&journal.BatchRecord{
		ID:        r.batchID,
		SourceDir: req.SourceDir,
		Host:      req.Endpoint.Host,
		DestDir:   req.DestDir,
		StartedAt: start.UTC(),
		Status:    batchRunning,
		LogPath:   logPath,
	})
}

// FilePending records a candidate before its transfer is attempted.
func (r *Recorder) FilePending(c *Candidate) error {
	return r.store.SaveFile(&journal.FileRecord{
		BatchID:  r.batchID,
		Path:     c.Path,
		Size:     c.Size,
		Checksum: c.Checksum,
		Status:   journal.StatusPending,
	})
}

// FileDone records a candidate's terminal outcome.
func (r *Recorder) FileDone(o *Outcome) error {
	rec := &journal.FileRecord{
		BatchID:     r.batchID,
		Path:        o.Candidate.Path,
		Size:        o.Candidate.Size,
		Checksum:    o.Candidate.Checksum,
		Status:      journal.StatusUploaded,
		CompletedAt: o.CompletedAt,
	}
	if o.Status == StatusFailed {
		rec.Status = journal.StatusFailed
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
	}
	return r.store.SaveFile(rec)
}

// BatchFinished overwrites the batch summary with its final tallies.
func (r *Recorder) BatchFinished(req *TransferRequest, start, finish time.Time, result *BatchResult) error {
	return r.store.SaveBatch(&journal.BatchRecord{
		ID:         r.batchID,
		SourceDir:  req.SourceDir,
		Host:       req.Endpoint.Host,
		DestDir:    req.DestDir,
		StartedAt:  start.UTC(),
		FinishedAt: finish.UTC(),
		Status:     string(result.Status),
		Attempted:  result.Attempted,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		LogPath:    result.LogPath,
	})
}

// BatchAborted records a preflight abort so history shows the attempt.
func (r *Recorder) BatchAborted(req *TransferRequest, start, finish time.Time, logPath string) error {
	return r.store.SaveBatch(&journal.BatchRecord{
		ID:         r.batchID,
		SourceDir:  req.SourceDir,
		Host:       req.Endpoint.Host,
		DestDir:    req.DestDir,
		StartedAt:  start.UTC(),
		FinishedAt: finish.UTC(),
		Status:     string(BatchAbortedPreflight),
		LogPath:    logPath,
	})
}
