package accesslog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Writer appends JSON records to the access log, one per line.
// Writes are serialized so concurrent request handlers never interleave lines.
type Writer struct {
	mux  sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenWriter opens (or creates) the access log for appending
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log: %w", err)
	}
	return &Writer{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Write appends one record
func (w *Writer) Write(rec Record) error {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.enc.Encode(rec)
}

// Close closes the underlying file
func (w *Writer) Close() error {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.file.Close()
}
