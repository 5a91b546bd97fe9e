// Package tail follows an append-only log file and delivers each complete
// line, in file order, to a consumer. It survives rotation (file identity
// change) and truncation (size regression), and never emits a line that
// has not yet been terminated by a newline.
package tail

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Nash0810/failsafe/internal/logging"
)

const readChunkSize = 32 * 1024

// Tailer follows one log file
type Tailer struct {
	path      string
	poll      time.Duration
	reopenInt time.Duration
	fromStart bool
	logger    *logging.Logger

	file  *os.File
	pos   int64
	carry []byte // partial line awaiting its terminator
}

// Option customizes a Tailer
type Option func(*Tailer)

// WithPollInterval sets the fallback poll interval used when no file
// event arrives
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) { t.poll = d }
}

// FromStart reads the file from the beginning instead of seeking to the
// end on first open
func FromStart() Option {
	return func(t *Tailer) { t.fromStart = true }
}

// New creates a tailer for the given path
func New(path string, logger *logging.Logger, opts ...Option) *Tailer {
	t := &Tailer{
		path:      path,
		poll:      100 * time.Millisecond,
		reopenInt: time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run follows the file until the context is canceled, invoking emit for
// every complete line in order. This is the pipeline's only idle wait:
// it blocks on file growth events with a polling fallback.
func (t *Tailer) Run(ctx context.Context, emit func(line string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		// Watch the directory: rotation replaces the file itself, so
		// watching the path directly would go stale after the first swap
		if werr := watcher.Add(filepath.Dir(t.path)); werr != nil {
			t.logger.Warn("tail_watch_failed_falling_back_to_polling", "error", werr.Error())
		}
		defer watcher.Close()
	} else {
		t.logger.Warn("tail_fsnotify_unavailable_polling_only", "error", err.Error())
		watcher = nil
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		if err := t.open(ctx); err != nil {
			return err
		}

		if err := t.follow(ctx, watcher, ticker, emit); err != nil {
			return err
		}
		// follow returned without error: the file was rotated; reopen at
		// the new file's beginning
		t.close()
		t.fromStart = true
	}
}

// open waits for the file to exist and positions the read offset
func (t *Tailer) open(ctx context.Context) error {
	for {
		f, err := os.Open(t.path)
		if err == nil {
			t.file = f
			t.pos = 0
			t.carry = nil
			if !t.fromStart {
				if end, serr := f.Seek(0, io.SeekEnd); serr == nil {
					t.pos = end
				}
			}
			t.logger.Info("tail_opened", "file", t.path, "offset", t.pos)
			return nil
		}

		t.logger.Warn("tail_file_missing_waiting", "file", t.path)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.reopenInt):
		}
	}
}

func (t *Tailer) close() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// follow drains new data until rotation is detected (returns nil) or the
// context ends (returns ctx.Err)
func (t *Tailer) follow(ctx context.Context, watcher *fsnotify.Watcher, ticker *time.Ticker, emit func(string)) error {
	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		if err := t.drain(emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			t.close()
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			} else if err != nil {
				t.logger.Warn("tail_watch_error", "error", err.Error())
			}
		}

		rotated, err := t.checkIdentity()
		if err != nil {
			return err
		}
		if rotated {
			// Pick up anything appended to the old file before the swap
			if err := t.drain(emit); err != nil {
				return err
			}
			t.logger.Info("tail_rotation_detected", "file", t.path)
			return nil
		}
	}
}

// checkIdentity detects rotation (path now names a different file) and
// truncation (size fell below our offset). Truncation is handled in place
// by seeking back to the start; rotation is reported to the caller.
func (t *Tailer) checkIdentity() (rotated bool, err error) {
	fi, statErr := os.Stat(t.path)
	if statErr != nil {
		// File vanished: treat as rotation, reopen when it reappears
		return true, nil
	}

	cur, statErr := t.file.Stat()
	if statErr != nil {
		return true, nil
	}

	if !os.SameFile(fi, cur) {
		return true, nil
	}

	if fi.Size() < t.pos {
		t.logger.Info("tail_truncation_detected", "file", t.path, "size", fi.Size())
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		t.pos = 0
		t.carry = nil
	}
	return false, nil
}

// drain reads everything currently appended and emits complete lines.
// A trailing fragment without a newline stays in the carry buffer until
// the writer finishes it.
func (t *Tailer) drain(emit func(string)) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			t.pos += int64(n)
			t.carry = append(t.carry, buf[:n]...)
			t.emitComplete(emit)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// emitComplete flushes all newline-terminated lines from the carry buffer
func (t *Tailer) emitComplete(emit func(string)) {
	for {
		idx := bytes.IndexByte(t.carry, '\n')
		if idx < 0 {
			return
		}
		line := string(t.carry[:idx])
		t.carry = t.carry[idx+1:]
		if line != "" {
			emit(line)
		}
	}
}
