package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harborworks/lighter/types"
)

// Schema is the current record schema version.
const Schema = 1

// Record is one deployment run, successful or not.
type Record struct {
	Schema       int       `msgpack:"schema"`
	RunID        string    `msgpack:"run_id"`
	Project      string    `msgpack:"project"`
	StartedAt    time.Time `msgpack:"started_at"`
	DurationMs   int64     `msgpack:"duration_ms"`
	Status       string    `msgpack:"status"`
	DeploymentID string    `msgpack:"deployment_id"`
	URL          string    `msgpack:"url"`
	FilesTotal   int       `msgpack:"files_total"`
	BytesTotal   int64     `msgpack:"bytes_total"`
	KeysTotal    int       `msgpack:"keys_total"`
	UploadedKeys int       `msgpack:"uploaded_keys"`
	ReusedKeys   int       `msgpack:"reused_keys"`
	Error        string    `msgpack:"error"`
}

// FromResult builds a journal record from a run result. runErr, when
// non-nil, marks the run failed regardless of the reported status.
func FromResult(res types.Result, startedAt time.Time, runErr error) Record {
	rec := Record{
		Schema:       Schema,
		RunID:        res.RunID,
		Project:      res.Project,
		StartedAt:    startedAt.UTC(),
		DurationMs:   res.DurationMs,
		Status:       string(res.Status),
		DeploymentID: res.DeploymentID,
		URL:          res.URL,
		FilesTotal:   res.Stats.TotalFiles,
		BytesTotal:   res.Stats.TotalBytes,
		KeysTotal:    res.UploadedKeys + res.ReusedKeys,
		UploadedKeys: res.UploadedKeys,
		ReusedKeys:   res.ReusedKeys,
	}
	if runErr != nil {
		rec.Status = string(types.StatusFailure)
		rec.Error = runErr.Error()
	}
	return rec
}

// Journal is an append-only run history file. Appends are serialized per
// process; each record is written as one frame in a single write call.
type Journal struct {
	mu   sync.Mutex
	path string
}

// Open prepares a journal at path, creating parent directories. The file
// itself is created on first append.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	return &Journal{path: path}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one record to the journal tail.
func (j *Journal) Append(rec Record) error {
	if rec.Schema == 0 {
		rec.Schema = Schema
	}
	frame, err := EncodeFrame(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("append record: %w", err)
	}
	return f.Close()
}

// ReadAll returns every readable record in append order.
// A truncated tail (interrupted append) ends the read without error; an
// undecodable record is skipped since frame boundaries stay intact.
func (j *Journal) ReadAll() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var records []Record
	decoder := NewFrameDecoder(f)
	for {
		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			break
		}
		if IsTruncatedFrame(err) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("read journal frame: %w", err)
		}

		rec, err := DecodeRecord(payload)
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

// ListOptions filters a journal read.
type ListOptions struct {
	// Project keeps only records for the named project. Empty keeps all.
	Project string
	// Limit caps the result to the most recent N records. Zero keeps all.
	Limit int
}

// List returns matching records, newest first.
func (j *Journal) List(opts ListOptions) ([]Record, error) {
	all, err := j.ReadAll()
	if err != nil {
		return nil, err
	}

	filtered := all[:0:0]
	for _, rec := range all {
		if opts.Project != "" && rec.Project != opts.Project {
			continue
		}
		filtered = append(filtered, rec)
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[len(filtered)-opts.Limit:]
	}

	// Reverse to newest-first for display.
	for i, jdx := 0, len(filtered)-1; i < jdx; i, jdx = i+1, jdx-1 {
		filtered[i], filtered[jdx] = filtered[jdx], filtered[i]
	}
	return filtered, nil
}
