package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/ports"
)

// SQLiteRepository implements ports.Store using GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.Store = (*SQLiteRepository)(nil)

// gormLogger wraps the timekeeper logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("TIMEKEEPER_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// NewSQLiteRepository creates a new SQLiteRepository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for concurrent access
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(
		&ActiveTrackingModel{},
		&WorkSessionModel{},
		&DaySummaryModel{},
		&GeofenceLocationModel{},
		&AICorrectionModel{},
		&QueuedEffectModel{},
		&SyncStateModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetActiveTracking implements TrackingStore.GetActiveTracking. Workers
// without a row get a fresh IDLE snapshot.
func (r *SQLiteRepository) GetActiveTracking(ctx context.Context, userID string) (*domain.ActiveTracking, error) {
	var model ActiveTrackingModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.ActiveTracking{
				Status: domain.StatusIdle,
				UserID: userID,
			}, nil
		}
		return nil, err
	}

	result := trackingModelToDomain(model)
	return &result, nil
}

// ListActiveTracking implements TrackingStore.ListActiveTracking
func (r *SQLiteRepository) ListActiveTracking(ctx context.Context) ([]domain.ActiveTracking, error) {
	var models []ActiveTrackingModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("status <> ?", string(domain.StatusIdle)).
			Order("user_id ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.ActiveTracking, len(models))
	for i, m := range models {
		result[i] = trackingModelToDomain(m)
	}
	return result, nil
}

// SaveActiveTracking implements TrackingStore.SaveActiveTracking
func (r *SQLiteRepository) SaveActiveTracking(ctx context.Context, t domain.ActiveTracking) error {
	return withRetry(func() error {
		model := domainToTrackingModel(t)
		return r.db.WithContext(ctx).Save(&model).Error
	}, 3)
}

// GetSession implements SessionReader.GetSession
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*domain.WorkSession, error) {
	var model WorkSessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	result := sessionModelToDomain(model)
	return &result, nil
}

// ListSessionsByDay implements SessionReader.ListSessionsByDay
func (r *SQLiteRepository) ListSessionsByDay(ctx context.Context, userID, date string) ([]domain.WorkSession, error) {
	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd := dayStart.Add(24 * time.Hour)

	var models []WorkSessionModel
	err = withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND deleted_at IS NULL AND enter_at >= ? AND enter_at < ?", userID, dayStart, dayEnd).
			Order("enter_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.WorkSession, len(models))
	for i, m := range models {
		result[i] = sessionModelToDomain(m)
	}
	return result, nil
}

// ListOpenSessions implements SessionReader.ListOpenSessions
func (r *SQLiteRepository) ListOpenSessions(ctx context.Context) ([]domain.WorkSession, error) {
	var models []WorkSessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("exit_at IS NULL AND deleted_at IS NULL").
			Order("enter_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.WorkSession, len(models))
	for i, m := range models {
		result[i] = sessionModelToDomain(m)
	}
	return result, nil
}

// ListDirtySessions implements SessionReader.ListDirtySessions
func (r *SQLiteRepository) ListDirtySessions(ctx context.Context, userID string) ([]domain.WorkSession, error) {
	var models []WorkSessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND (synced_at IS NULL OR updated_at > synced_at)", userID).
			Order("enter_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.WorkSession, len(models))
	for i, m := range models {
		result[i] = sessionModelToDomain(m)
	}
	return result, nil
}

// CreateSession implements SessionWriter.CreateSession
func (r *SQLiteRepository) CreateSession(ctx context.Context, s domain.WorkSession) error {
	return withRetry(func() error {
		model := domainToSessionModel(s)
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	}, 3)
}

// UpdateSession implements SessionWriter.UpdateSession
func (r *SQLiteRepository) UpdateSession(ctx context.Context, s domain.WorkSession) error {
	return withRetry(func() error {
		model := domainToSessionModel(s)
		result := r.db.WithContext(ctx).Model(&WorkSessionModel{}).
			Where("id = ?", s.ID).
			Select("*").Omit("id", "created_at").
			Updates(&model)
		if result.Error != nil {
			return fmt.Errorf("failed to update session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return nil
	}, 3)
}

// SoftDeleteSession implements SessionWriter.SoftDeleteSession
func (r *SQLiteRepository) SoftDeleteSession(ctx context.Context, id string, at time.Time) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&WorkSessionModel{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(map[string]any{
				"deleted_at": at,
				"updated_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return nil
	}, 3)
}

// MarkSessionsSynced implements SessionWriter.MarkSessionsSynced
func (r *SQLiteRepository) MarkSessionsSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return withRetry(func() error {
		return r.db.WithContext(ctx).Model(&WorkSessionModel{}).
			Where("id IN ?", ids).
			Update("synced_at", at).Error
	}, 3)
}

// GetDaySummary implements SummaryStore.GetDaySummary
func (r *SQLiteRepository) GetDaySummary(ctx context.Context, userID, date string) (*domain.DaySummary, error) {
	var model DaySummaryModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND date = ?", userID, date).
			First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSummaryNotFound
		}
		return nil, err
	}

	result := summaryModelToDomain(model)
	return &result, nil
}

// SaveDaySummary implements SummaryStore.SaveDaySummary
func (r *SQLiteRepository) SaveDaySummary(ctx context.Context, s domain.DaySummary) error {
	return withRetry(func() error {
		model := domainToSummaryModel(s)
		return r.db.WithContext(ctx).Save(&model).Error
	}, 3)
}

// ListRecentSummaries implements SummaryStore.ListRecentSummaries
func (r *SQLiteRepository) ListRecentSummaries(ctx context.Context, userID, beforeDate string, limit int) ([]domain.DaySummary, error) {
	var models []DaySummaryModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND date < ?", userID, beforeDate).
			Order("date DESC").
			Limit(limit).
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.DaySummary, len(models))
	for i, m := range models {
		result[i] = summaryModelToDomain(m)
	}
	return result, nil
}

// ListDirtySummaries implements SummaryStore.ListDirtySummaries
func (r *SQLiteRepository) ListDirtySummaries(ctx context.Context, userID string) ([]domain.DaySummary, error) {
	var models []DaySummaryModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND (synced_at IS NULL OR updated_at > synced_at)", userID).
			Order("date ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.DaySummary, len(models))
	for i, m := range models {
		result[i] = summaryModelToDomain(m)
	}
	return result, nil
}

// MarkSummariesSynced implements SummaryStore.MarkSummariesSynced
func (r *SQLiteRepository) MarkSummariesSynced(ctx context.Context, userID string, dates []string, at time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	return withRetry(func() error {
		return r.db.WithContext(ctx).Model(&DaySummaryModel{}).
			Where("user_id = ? AND date IN ?", userID, dates).
			Update("synced_at", at).Error
	}, 3)
}

// GetFence implements FenceStore.GetFence
func (r *SQLiteRepository) GetFence(ctx context.Context, userID, fenceID string) (*domain.GeofenceLocation, error) {
	var model GeofenceLocationModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", fenceID, userID).
			First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnknownFence
		}
		return nil, err
	}

	result := fenceModelToDomain(model)
	return &result, nil
}

// ListFences implements FenceStore.ListFences
func (r *SQLiteRepository) ListFences(ctx context.Context, userID string) ([]domain.GeofenceLocation, error) {
	var models []GeofenceLocationModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("name ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.GeofenceLocation, len(models))
	for i, m := range models {
		result[i] = fenceModelToDomain(m)
	}
	return result, nil
}

// SaveFence implements FenceStore.SaveFence
func (r *SQLiteRepository) SaveFence(ctx context.Context, f domain.GeofenceLocation) error {
	return withRetry(func() error {
		model := domainToFenceModel(f)
		return r.db.WithContext(ctx).Save(&model).Error
	}, 3)
}

// AppendCorrection implements CorrectionStore.AppendCorrection
func (r *SQLiteRepository) AppendCorrection(ctx context.Context, c domain.AICorrection) error {
	return withRetry(func() error {
		model := domainToCorrectionModel(c)
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to append correction: %w", err)
		}
		return nil
	}, 3)
}

// GetCorrection implements CorrectionStore.GetCorrection
func (r *SQLiteRepository) GetCorrection(ctx context.Context, id string) (*domain.AICorrection, error) {
	var model AICorrectionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("correction %s not found", id)
		}
		return nil, err
	}

	result := correctionModelToDomain(model)
	return &result, nil
}

// ListCorrectionsBySession implements CorrectionStore.ListCorrectionsBySession
func (r *SQLiteRepository) ListCorrectionsBySession(ctx context.Context, sessionID string) ([]domain.AICorrection, error) {
	var models []AICorrectionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("created_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.AICorrection, len(models))
	for i, m := range models {
		result[i] = correctionModelToDomain(m)
	}
	return result, nil
}

// ListCorrectionsByDate implements CorrectionStore.ListCorrectionsByDate
func (r *SQLiteRepository) ListCorrectionsByDate(ctx context.Context, userID, date string) ([]domain.AICorrection, error) {
	var models []AICorrectionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND date = ?", userID, date).
			Order("created_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.AICorrection, len(models))
	for i, m := range models {
		result[i] = correctionModelToDomain(m)
	}
	return result, nil
}

// HasActiveCorrection implements CorrectionStore.HasActiveCorrection
func (r *SQLiteRepository) HasActiveCorrection(ctx context.Context, userID, date string) (bool, error) {
	var count int64

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Model(&AICorrectionModel{}).
			Where("user_id = ? AND date = ? AND reverted = ?", userID, date, false).
			Count(&count).Error
	}, 3)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// MarkCorrectionReverted implements CorrectionStore.MarkCorrectionReverted
func (r *SQLiteRepository) MarkCorrectionReverted(ctx context.Context, id string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&AICorrectionModel{}).
			Where("id = ?", id).
			Update("reverted", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("correction %s not found", id)
		}
		return nil
	}, 3)
}

// EnqueueEffect implements EffectQueue.EnqueueEffect. A pending effect with
// the same dedup key coalesces into a no-op.
func (r *SQLiteRepository) EnqueueEffect(ctx context.Context, e domain.QueuedEffect) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&QueuedEffectModel{}).
				Where("dedup_key = ? AND status = ?", e.DedupKey, string(domain.EffectPending)).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			model := domainToEffectModel(e)
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("failed to enqueue effect: %w", err)
			}
			return nil
		})
	}, 3)
}

// DueEffects implements EffectQueue.DueEffects
func (r *SQLiteRepository) DueEffects(ctx context.Context, lane domain.EffectPriority, now time.Time, limit int) ([]domain.QueuedEffect, error) {
	var models []QueuedEffectModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("priority = ? AND status = ? AND next_run_at <= ?", string(lane), string(domain.EffectPending), now).
			Order("next_run_at ASC, created_at ASC").
			Limit(limit).
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.QueuedEffect, len(models))
	for i, m := range models {
		result[i] = effectModelToDomain(m)
	}
	return result, nil
}

// MarkEffectDone implements EffectQueue.MarkEffectDone
func (r *SQLiteRepository) MarkEffectDone(ctx context.Context, id string) error {
	return r.setEffectStatus(ctx, id, domain.EffectDone)
}

// MarkEffectFailed implements EffectQueue.MarkEffectFailed
func (r *SQLiteRepository) MarkEffectFailed(ctx context.Context, id string) error {
	return r.setEffectStatus(ctx, id, domain.EffectFailed)
}

func (r *SQLiteRepository) setEffectStatus(ctx context.Context, id string, status domain.EffectStatus) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&QueuedEffectModel{}).
			Where("id = ?", id).
			Update("status", string(status))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("effect %s not found", id)
		}
		return nil
	}, 3)
}

// RescheduleEffect implements EffectQueue.RescheduleEffect
func (r *SQLiteRepository) RescheduleEffect(ctx context.Context, id string, retryCount int, nextRunAt time.Time) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&QueuedEffectModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"next_run_at": nextRunAt,
				"retry_count": retryCount,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("effect %s not found", id)
		}
		return nil
	}, 3)
}

// EffectExecuted implements EffectQueue.EffectExecuted
func (r *SQLiteRepository) EffectExecuted(ctx context.Context, dedupKey string) (bool, error) {
	var count int64

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Model(&QueuedEffectModel{}).
			Where("dedup_key = ? AND status = ?", dedupKey, string(domain.EffectDone)).
			Count(&count).Error
	}, 3)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// ListFailedEffects implements EffectQueue.ListFailedEffects
func (r *SQLiteRepository) ListFailedEffects(ctx context.Context) ([]domain.QueuedEffect, error) {
	var models []QueuedEffectModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("status = ?", string(domain.EffectFailed)).
			Order("updated_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.QueuedEffect, len(models))
	for i, m := range models {
		result[i] = effectModelToDomain(m)
	}
	return result, nil
}

// GetSyncState implements SyncStateStore.GetSyncState. Workers that never
// synced get a zero watermark.
func (r *SQLiteRepository) GetSyncState(ctx context.Context, userID string) (*domain.SyncState, error) {
	var model SyncStateModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.SyncState{UserID: userID}, nil
		}
		return nil, err
	}

	return &domain.SyncState{
		LastSyncedAt: model.LastSyncedAt,
		UpdatedAt:    model.UpdatedAt,
		UserID:       model.UserID,
	}, nil
}

// SaveSyncState implements SyncStateStore.SaveSyncState
func (r *SQLiteRepository) SaveSyncState(ctx context.Context, s domain.SyncState) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Save(&SyncStateModel{
			LastSyncedAt: s.LastSyncedAt,
			UpdatedAt:    s.UpdatedAt,
			UserID:       s.UserID,
		}).Error
	}, 3)
}

// withRetry retries operations on SQLITE_BUSY with exponential backoff
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
