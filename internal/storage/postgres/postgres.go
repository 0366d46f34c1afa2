// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/storage"
	"github.com/rovshanmuradov/launchguard/internal/storage/models"
)

// migrationLockID is the advisory lock held while migrating.
const migrationLockID = 101

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	// Пустой результат First не считаем ошибкой.
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Debug("trace", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func gormConfig(zapLogger *zap.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	}
}

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(zapLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return newStorage(db, zapLogger), nil
}

func newStorage(db *gorm.DB, zapLogger *zap.Logger) *postgresStorage {
	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("postgres"),
	}
}

// RunMigrations использует GORM AutoMigrate под advisory lock.
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)

	return p.migrate()
}

func (p *postgresStorage) migrate() error {
	if err := p.db.AutoMigrate(&models.JournalEntry{}, &models.LaunchSummary{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Record stores entry and updates the launch rollup in one transaction.
func (p *postgresStorage) Record(ctx context.Context, entry *models.JournalEntry) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return updateSummary(tx, entry)
	})
}

func updateSummary(tx *gorm.DB, entry *models.JournalEntry) error {
	switch entry.EventType {
	case string(events.ProgramInitialized):
		summary := &models.LaunchSummary{
			Mint:          entry.Mint,
			Authority:     entry.Trader,
			Pool:          entry.Pool,
			LaunchSlot:    entry.Slot,
			ReserveAmount: entry.TokenAmount,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(summary).Error
	case string(events.BotPurchaseHandled):
		return tx.Model(&models.LaunchSummary{}).
			Where("mint = ?", entry.Mint).
			Updates(map[string]interface{}{
				"captured_value": entry.CapturedTotal,
				"bot_purchases":  gorm.Expr("bot_purchases + 1"),
			}).Error
	case string(events.TradeRejected):
		return tx.Model(&models.LaunchSummary{}).
			Where("mint = ?", entry.Mint).
			Update("rejections", gorm.Expr("rejections + 1")).Error
	}
	return nil
}

func (p *postgresStorage) ListEntries(ctx context.Context, mint string, limit, offset int) ([]*models.JournalEntry, error) {
	var entries []*models.JournalEntry
	err := p.db.WithContext(ctx).
		Where("mint = ?", mint).
		Order("occurred_at desc").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

func (p *postgresStorage) GetLaunchSummary(ctx context.Context, mint string) (*models.LaunchSummary, error) {
	var summary models.LaunchSummary
	err := p.db.WithContext(ctx).Where("mint = ?", mint).First(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
