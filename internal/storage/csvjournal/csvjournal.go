// internal/storage/csvjournal/csvjournal.go
package csvjournal

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/logger"
	"github.com/rovshanmuradov/launchguard/internal/storage/models"
)

// DefaultFlushInterval is how often buffered rows reach the file.
const DefaultFlushInterval = 2 * time.Second

var header = []string{
	"timestamp", "event", "mint", "trader", "pool", "side",
	"value_amount", "token_amount", "captured_total", "reason", "slot",
}

// Journal appends journal entries to a CSV file.
type Journal struct {
	writer *logger.SafeCSVWriter
}

func New(path string, flushInterval time.Duration, zapLogger *zap.Logger) (*Journal, error) {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	w, err := logger.NewSafeCSVWriter(path, header, flushInterval, zapLogger.Named("csv_journal"))
	if err != nil {
		return nil, err
	}
	return &Journal{writer: w}, nil
}

func (j *Journal) Record(_ context.Context, e *models.JournalEntry) error {
	return j.writer.WriteRecord([]string{
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
		e.EventType,
		e.Mint,
		e.Trader,
		e.Pool,
		e.Side,
		e.ValueAmount.String(),
		e.TokenAmount.String(),
		e.CapturedTotal.String(),
		e.Reason,
		strconv.FormatUint(e.Slot, 10),
	})
}

func (j *Journal) Flush() error {
	return j.writer.Flush()
}

func (j *Journal) Close() error {
	return j.writer.Close()
}
