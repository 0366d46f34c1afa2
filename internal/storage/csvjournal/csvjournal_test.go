package csvjournal

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchguard/internal/storage/models"
)

func TestJournalWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.csv")
	j, err := New(path, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.Record(context.Background(), &models.JournalEntry{
		EventType:     "trade.bot_handled",
		Mint:          "mint",
		Trader:        "bot",
		Side:          "buy",
		ValueAmount:   decimal.NewFromUint64(100_000_000),
		TokenAmount:   decimal.NewFromUint64(90_909_090_910),
		CapturedTotal: decimal.NewFromUint64(100_000_000),
		Slot:          1001,
		OccurredAt:    at,
	}))
	require.NoError(t, j.Record(context.Background(), &models.JournalEntry{
		EventType:   "launch.initialized",
		Mint:        "mint",
		Trader:      "authority",
		Pool:        "pool",
		TokenAmount: decimal.NewFromUint64(10),
		Slot:        1000,
		OccurredAt:  at,
	}))
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{
		"2025-01-02T03:04:05Z", "trade.bot_handled", "mint", "bot", "", "buy",
		"100000000", "90909090910", "100000000", "", "1001",
	}, rows[1])
	assert.Equal(t, "pool", rows[2][4])
}
