// internal/logger/writers.go
package logger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("csv writer closed")

// SafeCSVWriter is an append-only CSV file shared by concurrent producers.
// Rows are buffered and reach disk on Flush, on Close and every flush interval.
type SafeCSVWriter struct {
	path   string
	width  int
	logger *zap.Logger

	mu     sync.Mutex
	file   *os.File
	csv    *csv.Writer
	dirty  bool
	closed bool

	records uint64
	flushes uint64

	stop     chan struct{}
	loopDone chan struct{}
	once     sync.Once
}

// NewSafeCSVWriter opens filePath for appending. header is written only
// when the file is empty; every record must have the same width.
func NewSafeCSVWriter(filePath string, header []string, flushInterval time.Duration, logger *zap.Logger) (*SafeCSVWriter, error) {
	if len(header) == 0 {
		return nil, errors.New("csv header is required")
	}
	if flushInterval <= 0 {
		return nil, fmt.Errorf("invalid flush interval %s", flushInterval)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	w := &SafeCSVWriter{
		path:     filePath,
		width:    len(header),
		logger:   logger,
		file:     f,
		csv:      csv.NewWriter(f),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	// Заголовок пишется только в пустой файл и в статистику не входит.
	if info.Size() == 0 {
		if err := w.csv.Write(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		w.dirty = true
	}

	go w.flushLoop(flushInterval)
	return w, nil
}

// WriteRecord buffers one row.
func (w *SafeCSVWriter) WriteRecord(record []string) error {
	if len(record) != w.width {
		return fmt.Errorf("record has %d fields, header has %d", len(record), w.width)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.records++
	w.dirty = true
	return nil
}

// Flush pushes buffered rows to disk.
func (w *SafeCSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.flushLocked()
}

func (w *SafeCSVWriter) flushLocked() error {
	if !w.dirty {
		return nil
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv writer error: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", w.path, err)
	}
	w.dirty = false
	w.flushes++
	return nil
}

func (w *SafeCSVWriter) flushLoop(interval time.Duration) {
	defer close(w.loopDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Flush(); err != nil && !errors.Is(err, ErrWriterClosed) {
				w.logger.Error("Periodic CSV flush failed",
					zap.String("file", w.path),
					zap.Error(err))
			}
		case <-w.stop:
			return
		}
	}
}

// Close flushes what is left and closes the file. Safe to call twice.
func (w *SafeCSVWriter) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		<-w.loopDone

		w.mu.Lock()
		defer w.mu.Unlock()
		err = errors.Join(w.flushLocked(), w.file.Close())
		w.closed = true

		w.logger.Debug("CSV writer closed",
			zap.String("file", w.path),
			zap.Uint64("records", w.records),
			zap.Uint64("flushes", w.flushes))
	})
	return err
}

// GetStats returns how many records were written and how many flushes hit disk.
func (w *SafeCSVWriter) GetStats() (records, flushes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records, w.flushes
}
