package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gofrs/flock"
)

// CSVFile appends rows to one CSV file, creating it and writing the header
// on first use. With locking enabled every append holds an advisory lock on
// <path>.lock so separate processes do not interleave rows.
type CSVFile struct {
	path   string
	header []string
	lock   *flock.Flock

	mu      sync.Mutex
	written bool
}

func NewCSVFile(path string, header []string, locked bool) *CSVFile {
	f := &CSVFile{path: path, header: header}
	if locked {
		f.lock = flock.New(path + ".lock")
	}
	return f
}

func (f *CSVFile) Path() string { return f.path }

// Written reports whether this CSVFile has appended anything.
func (f *CSVFile) Written() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// Append writes rows at the end of the file. A file that is missing or
// empty gets the header first.
func (f *CSVFile) Append(rows [][]string) (err error) {
	if len(rows) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if f.lock != nil {
		if err := f.lock.Lock(); err != nil {
			return fmt.Errorf("failed to lock %s: %w", f.path, err)
		}
		defer func() {
			if uerr := f.lock.Unlock(); uerr != nil && err == nil {
				err = fmt.Errorf("failed to unlock %s: %w", f.path, uerr)
			}
		}()
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", f.path, cerr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.path, err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(f.header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", f.path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows to %s: %w", f.path, err)
	}

	f.written = true
	return nil
}

// ReadColumn returns every non-empty value of column in the CSV at path, in
// file order. A missing file yields nil and no error.
func ReadColumn(path, column string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	idx := slices.Index(header, column)
	if idx == -1 {
		return nil, fmt.Errorf("%s has no %s column", path, column)
	}

	var out []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if idx < len(record) && record[idx] != "" {
			out = append(out, record[idx])
		}
	}
	return out, nil
}

// ReadProcessedURLs loads the set of source URLs already present in the
// accepted sink at path.
func ReadProcessedURLs(path string) (map[string]struct{}, error) {
	urls, err := ReadColumn(path, "sourceURL")
	if err != nil {
		return map[string]struct{}{}, err
	}
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}
