package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrBatchNotFound is returned when a batch is not in the journal.
	ErrBatchNotFound = errors.New("batch not found")
)

var (
	batchesBucket = []byte("batches")
	filesBucket   = []byte("files")
)

// File statuses as persisted in FileRecord.Status.
const (
	StatusPending  = "Pending"
	StatusUploaded = "Uploaded"
	StatusFailed   = "Failed"
)

// BatchRecord is the persisted summary of one push invocation.
type BatchRecord struct {
	ID         string    `json:"id"`
	SourceDir  string    `json:"source_dir"`
	Host       string    `json:"host"`
	DestDir    string    `json:"dest_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Status     string    `json:"status"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	LogPath    string    `json:"log_path,omitempty"`
}

// FileRecord is the persisted outcome of one file within a batch.
type FileRecord struct {
	BatchID     string    `json:"batch_id"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Checksum    uint64    `json:"checksum,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// Store defines the interface for recording batch history.
type Store interface {
	SaveBatch(batch *BatchRecord) error
	GetBatch(id string) (*BatchRecord, error)
	SaveFile(file *FileRecord) error
	ListBatches() ([]*BatchRecord, error)
	ListFiles(batchID string) ([]*FileRecord, error)
	LastBatchForSource(sourceDir string) (*BatchRecord, error)
	FailedFiles(batchID string) ([]*FileRecord, error)
	Close() error
}

// BoltJournal is a Store implementation backed by bbolt.
type BoltJournal struct {
	db *bbolt.DB
}

// Open creates or opens a BoltJournal at the given path.
func Open(path string) (*BoltJournal, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(batchesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(filesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal buckets: %w", err)
	}

	return &BoltJournal{db: db}, nil
}

// fileKey keys file records under their batch so one batch's files can be
// scanned as a prefix.
func fileKey(batchID, path string) []byte {
	k := make([]byte, 0, len(batchID)+1+len(path))
	k = append(k, batchID...)
	k = append(k, 0)
	k = append(k, path...)
	return k
}

// SaveBatch writes or overwrites a batch summary.
func (j *BoltJournal) SaveBatch(batch *BatchRecord) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("failed to marshal batch: %w", err)
		}
		if err := tx.Bucket(batchesBucket).Put([]byte(batch.ID), data); err != nil {
			return fmt.Errorf("failed to put batch: %w", err)
		}
		return nil
	})
}

// GetBatch retrieves one batch summary.
func (j *BoltJournal) GetBatch(id string) (*BatchRecord, error) {
	var batch BatchRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(batchesBucket).Get([]byte(id))
		if data == nil {
			return ErrBatchNotFound
		}
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("failed to unmarshal batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// SaveFile writes or overwrites one file outcome.
func (j *BoltJournal) SaveFile(file *FileRecord) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(file)
		if err != nil {
			return fmt.Errorf("failed to marshal file record: %w", err)
		}
		if err := tx.Bucket(filesBucket).Put(fileKey(file.BatchID, file.Path), data); err != nil {
			return fmt.Errorf("failed to put file record: %w", err)
		}
		return nil
	})
}

// ListBatches returns all batch summaries, newest first.
func (j *BoltJournal) ListBatches() ([]*BatchRecord, error) {
	var batches []*BatchRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(batchesBucket).ForEach(func(_, data []byte) error {
			var batch BatchRecord
			if err := json.Unmarshal(data, &batch); err != nil {
				return fmt.Errorf("failed to unmarshal batch: %w", err)
			}
			batches = append(batches, &batch)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(batches, func(i, k int) bool {
		return batches[i].StartedAt.After(batches[k].StartedAt)
	})
	return batches, nil
}

// ListFiles returns the file outcomes recorded under one batch.
func (j *BoltJournal) ListFiles(batchID string) ([]*FileRecord, error) {
	var files []*FileRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		prefix := fileKey(batchID, "")
		c := tx.Bucket(filesBucket).Cursor()
		for k, data := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, data = c.Next() {
			var file FileRecord
			if err := json.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to unmarshal file record: %w", err)
			}
			files = append(files, &file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// LastBatchForSource returns the most recent batch pushed from sourceDir.
func (j *BoltJournal) LastBatchForSource(sourceDir string) (*BatchRecord, error) {
	batches, err := j.ListBatches()
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
		if batch.SourceDir == sourceDir {
			return batch, nil
		}
	}
	return nil, ErrBatchNotFound
}

// FailedFiles returns the file outcomes of one batch that did not reach
// the remote server. Used to build a retry candidate set.
func (j *BoltJournal) FailedFiles(batchID string) ([]*FileRecord, error) {
	files, err := j.ListFiles(batchID)
	if err != nil {
		return nil, err
	}

	var failed []*FileRecord
	for _, file := range files {
		if file.Status == StatusFailed {
			failed = append(failed, file)
		}
	}
	return failed, nil
}

// Close closes the underlying database.
func (j *BoltJournal) Close() error {
	return j.db.Close()
}
