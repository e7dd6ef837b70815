package transfer

import "fmt"

// FailureKind classifies preflight failures. Kinds are string codes so
// they survive logging and JSON round trips intact.
type FailureKind string

const (
	// KindDirectoryNotFound indicates the source staging directory is
	// missing or not a directory.
	KindDirectoryNotFound FailureKind = "DIRECTORY_NOT_FOUND"

	// KindBackupWriteFailed indicates the backup tee could not duplicate
	// a candidate before remote work began.
	KindBackupWriteFailed FailureKind = "BACKUP_WRITE_FAILED"

	// KindConnectionError indicates the remote session could not be
	// established or broke during destination verification.
	KindConnectionError FailureKind = "CONNECTION_ERROR"

	// KindDestinationNotFound indicates the remote destination directory
	// does not exist.
	KindDestinationNotFound FailureKind = "DESTINATION_NOT_FOUND"

	// KindBatchCancelled indicates the batch was cancelled before any
	// remote work began.
	KindBatchCancelled FailureKind = "BATCH_CANCELLED"
)

// PreflightError is a fatal batch-level failure. Any PreflightError
// aborts the batch before the per-file loop runs; per-file transfer
// failures are never represented by this type, they become Outcomes.
type PreflightError struct {
	Kind FailureKind

	// Path is the local or remote path the failure concerns, when any.
	Path string

	// Host is the remote host, set for connection-level failures.
	Host string

	// Err is the underlying cause, when any.
	Err error
}

func (e *PreflightError) Error() string {
	msg := string(e.Kind)
	if e.Host != "" {
		msg += " host=" + e.Host
	}
	if e.Path != "" {
		msg += " path=" + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

// LogFlushError reports that the audit trail could not be written. It is
// returned alongside the batch result, never instead of it, because an
// incomplete audit trail is a distinct problem from a failed transfer.
type LogFlushError struct {
	Path string
	Err  error
}

func (e *LogFlushError) Error() string {
	return fmt.Sprintf("audit log %s could not be flushed: %v", e.Path, e.Err)
}

func (e *LogFlushError) Unwrap() error {
	return e.Err
}
