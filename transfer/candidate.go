package transfer

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fleetops/stagepush/journal"
	"github.com/fleetops/stagepush/stage"
)

// Candidate is one file discovered in the staging directory. Created
// during selection, immutable for the rest of the batch except for the
// checksum recorded while its bytes stream through the tee or the upload.
type Candidate struct {
	// Path is the file's path as addressed through the staging FS.
	Path string

	// Name is the bare filename, reused at the destination.
	Name string

	Size    int64
	ModTime time.Time

	// Excluded is true for files matching the reserved hold pattern.
	// Excluded files are surfaced for audit counts but never transferred
	// and never swept by the age cutoff.
	Excluded bool

	// Checksum is the CRC64 of the file's bytes, recorded while they
	// stream through the backup tee or the upload.
	Checksum uint64
}

// SelectCandidates lists the request's source directory and produces the
// batch's candidate set: regular files strictly newer than the cutoff
// (when one is set), with hold-pattern files flagged Excluded regardless
// of their age. The result is sorted by name so logging and tests see a
// stable order. An empty result is no work, not an error.
func SelectCandidates(ctx context.Context, fs stage.FS, req *TransferRequest) ([]*Candidate, error) {
	info, err := fs.Stat(ctx, req.SourceDir)
	if err != nil {
		return nil, &PreflightError{Kind: KindDirectoryNotFound, Path: req.SourceDir, Err: err}
	}
	if !info.IsDir() {
		return nil, &PreflightError{Kind: KindDirectoryNotFound, Path: req.SourceDir}
	}

	entries, err := fs.List(ctx, req.SourceDir)
	if err != nil {
		return nil, &PreflightError{Kind: KindDirectoryNotFound, Path: req.SourceDir, Err: err}
	}

	exclude := req.excludeRegexp()

	var candidates []*Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		c := &Candidate{
			Path:    filepath.Join(req.SourceDir, entry.Name()),
			Name:    entry.Name(),
			Size:    entry.Size(),
			ModTime: entry.ModTime(),
		}

		// The hold pattern wins over the cutoff: a held file is reported
		// as excluded even when the age filter would have dropped it.
		if exclude.MatchString(entry.Name()) {
			c.Excluded = true
			candidates = append(candidates, c)
			continue
		}

		if !req.ModifiedAfter.IsZero() && !entry.ModTime().After(req.ModifiedAfter) {
			continue
		}

		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].Name < candidates[k].Name
	})
	return candidates, nil
}

// Included filters a candidate set down to the files that will actually
// be transferred.
func Included(candidates []*Candidate) []*Candidate {
	var included []*Candidate
	for _, c := range candidates {
		if !c.Excluded {
			included = append(included, c)
		}
	}
	return included
}

// CandidatesFromRecords rebuilds a candidate set from a previous batch's
// failed file records, re-stating each file so sizes and timestamps are
// current. Files that have disappeared since the failed run are skipped.
// The exclusion pattern still applies.
func CandidatesFromRecords(ctx context.Context, fs stage.FS, req *TransferRequest, records []*journal.FileRecord) ([]*Candidate, error) {
	exclude := req.excludeRegexp()

	var candidates []*Candidate
	for _, rec := range records {
		info, err := fs.Stat(ctx, rec.Path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}

		c := &Candidate{
			Path:    rec.Path,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if exclude.MatchString(info.Name()) {
			c.Excluded = true
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].Name < candidates[k].Name
	})
	return candidates, nil
}
