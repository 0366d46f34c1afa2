// internal/storage/models/journal.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is one engine event as stored by a journal.
type JournalEntry struct {
	BaseModel
	EventType string `gorm:"index;not null;type:varchar(32)"`
	Mint      string `gorm:"index;not null;type:varchar(44)"`
	Trader    string `gorm:"index;type:varchar(44)"`
	// Pool is set for launch initialization only.
	Pool        string          `gorm:"type:varchar(44)"`
	Side        string          `gorm:"type:varchar(8)"`
	ValueAmount decimal.Decimal `gorm:"type:numeric(20,0)"`
	TokenAmount decimal.Decimal `gorm:"type:numeric(20,0)"`
	// CapturedTotal is set for neutralized purchases only.
	CapturedTotal decimal.Decimal `gorm:"type:numeric(20,0)"`
	Reason        string          `gorm:"type:varchar(64)"`
	Slot          uint64          `gorm:"index"`
	OccurredAt    time.Time       `gorm:"index;not null"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}

// LaunchSummary is a per-mint rollup kept next to the journal.
type LaunchSummary struct {
	BaseModel
	Mint          string          `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Authority     string          `gorm:"type:varchar(44)"`
	Pool          string          `gorm:"type:varchar(44)"`
	LaunchSlot    uint64          `gorm:"not null"`
	ReserveAmount decimal.Decimal `gorm:"type:numeric(20,0)"`
	CapturedValue decimal.Decimal `gorm:"type:numeric(20,0)"`
	BotPurchases  int64           `gorm:"not null;default:0"`
	Rejections    int64           `gorm:"not null;default:0"`
}
