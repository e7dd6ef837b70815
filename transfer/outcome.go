package transfer

import "time"

// Status is the terminal classification of one candidate's transfer.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusUploaded Status = "Uploaded"
	StatusFailed   Status = "Failed"
)

// Outcome records how one candidate's transfer ended. It transitions at
// most once from Pending to a terminal status.
type Outcome struct {
	Candidate   *Candidate
	Status      Status
	Err         error
	CompletedAt time.Time
}

func newOutcome(c *Candidate) *Outcome {
	return &Outcome{Candidate: c, Status: StatusPending}
}

func (o *Outcome) markUploaded() {
	if o.Status != StatusPending {
		return
	}
	o.Status = StatusUploaded
	o.CompletedAt = time.Now().UTC()
}

func (o *Outcome) markFailed(err error) {
	if o.Status != StatusPending {
		return
	}
	o.Status = StatusFailed
	o.Err = err
	o.CompletedAt = time.Now().UTC()
}

// BatchStatus is the overall classification of one batch run.
type BatchStatus string

const (
	// BatchCompleted means every attempted file was uploaded.
	BatchCompleted BatchStatus = "Completed"

	// BatchCompletedWithErrors means the batch ran to the end but some
	// files failed.
	BatchCompletedWithErrors BatchStatus = "CompletedWithErrors"

	// BatchAbortedPreflight means a fatal condition stopped the batch
	// before any file was attempted.
	BatchAbortedPreflight BatchStatus = "AbortedPreflight"

	// BatchAbortedFatal means the batch was cut short mid-transfer, for
	// example by cancellation.
	BatchAbortedFatal BatchStatus = "AbortedFatal"
)

// BatchResult is the aggregate returned to the caller. Immutable once
// produced.
type BatchResult struct {
	BatchID   string
	Attempted int
	Succeeded int
	Failed    int
	Status    BatchStatus
	LogPath   string
}

// summarize tallies outcomes into a BatchResult.
func summarize(batchID, logPath string, outcomes []*Outcome, cancelled bool) *BatchResult {
	result := &BatchResult{
		BatchID:   batchID,
		Attempted: len(outcomes),
		LogPath:   logPath,
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusUploaded:
			result.Succeeded++
		case StatusFailed:
			result.Failed++
		}
	}

	switch {
	case cancelled:
		result.Status = BatchAbortedFatal
	case result.Failed > 0:
		result.Status = BatchCompletedWithErrors
	default:
		result.Status = BatchCompleted
	}
	return result
}
