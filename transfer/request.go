package transfer

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fleetops/stagepush/remote"
)

// DefaultExcludePattern matches the hold-file naming convention: files
// whose name starts with "hold" (any case, followed by a separator) carry
// a different aging policy and are never swept into a batch. The pattern
// is configurable per request.
const DefaultExcludePattern = `(?i)^hold[-_.]`

// TransferRequest is the immutable input of one batch. Construct it,
// call Validate once, and do not mutate it afterwards.
type TransferRequest struct {
	// SourceDir is the local staging directory. Must exist.
	SourceDir string

	// DestDir is the remote destination directory. Verified against the
	// open session, not before.
	DestDir string

	// Endpoint identifies the remote server and its credentials.
	Endpoint remote.Endpoint

	// BackupDir, when set, receives a local copy of every candidate
	// before any remote mutation.
	BackupDir string

	// ModifiedAfter, when non-zero, restricts candidates to files whose
	// modification time is strictly after it.
	ModifiedAfter time.Time

	// Move removes the local file after a confirmed upload.
	Move bool

	// ExcludePattern overrides DefaultExcludePattern. A regular
	// expression matched against the bare filename.
	ExcludePattern string

	// LogDir is where the audit log is written. Defaults to "logs".
	LogDir string

	exclude *regexp.Regexp
}

// Validate checks required fields, applies defaults, and compiles the
// exclusion pattern. It must be called before the request is used.
func (r *TransferRequest) Validate() error {
	if r.SourceDir == "" {
		return fmt.Errorf("source directory is required")
	}
	if r.DestDir == "" {
		return fmt.Errorf("destination path is required")
	}
	if r.Endpoint.Host == "" {
		return fmt.Errorf("remote host is required")
	}
	if r.LogDir == "" {
		r.LogDir = "logs"
	}

	pattern := r.ExcludePattern
	if pattern == "" {
		pattern = DefaultExcludePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
	}
	r.exclude = re
	return nil
}

// excludeRegexp returns the compiled exclusion pattern, compiling the
// default lazily when Validate was skipped (tests construct partial
// requests).
func (r *TransferRequest) excludeRegexp() *regexp.Regexp {
	if r.exclude == nil {
		r.exclude = regexp.MustCompile(DefaultExcludePattern)
	}
	return r.exclude
}
