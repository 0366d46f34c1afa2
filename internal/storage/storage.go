// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/launchguard/internal/storage/models"
)

// Journal принимает записи о событиях движка.
type Journal interface {
	Record(ctx context.Context, entry *models.JournalEntry) error
	Close() error
}

// Storage is a queryable journal with per-launch rollups.
type Storage interface {
	Journal

	ListEntries(ctx context.Context, mint string, limit, offset int) ([]*models.JournalEntry, error)
	GetLaunchSummary(ctx context.Context, mint string) (*models.LaunchSummary, error)

	// Миграции
	RunMigrations() error
}
