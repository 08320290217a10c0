// Package datastore persists cached evaluations and game analysis
// summaries behind a storage interface, with a SQLite implementation.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/logging"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Evaluation cache tier, keyed by normalized FEN.
	GetEvaluation(ctx context.Context, key string) (*uci.Evaluation, bool, error)
	SaveEvaluation(ctx context.Context, key string, eval *uci.Evaluation) error
	EvaluationCount(ctx context.Context) (int64, error)
	PruneEvaluations(ctx context.Context, olderThan time.Time) (int64, error)

	// Game analysis history.
	SaveGameAnalysis(ctx context.Context, analysis *GameAnalysis) error
	GetGameAnalysis(ctx context.Context, id uint) (*GameAnalysis, error)
	RecentGameAnalyses(ctx context.Context, limit int) ([]GameAnalysis, error)
}

// DataStore implements Interface on top of a GORM database handle.
type DataStore struct {
	DB *gorm.DB
}

// New selects a store implementation from settings. Returns nil when no
// persistent output is enabled; the cache chain treats a nil store as a
// skipped tier.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

// GetEvaluation looks up a cached evaluation by key. A missing row is a
// miss, not an error.
func (ds *DataStore) GetEvaluation(ctx context.Context, key string) (*uci.Evaluation, bool, error) {
	var row CachedEvaluation
	err := ds.DB.WithContext(ctx).Where("fen_key = ?", key).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "get_evaluation").
			Component("datastore").
			Build()
	}
	return row.ToEvaluation(), true, nil
}

// SaveEvaluation upserts an evaluation by key, so concurrent writers and
// depth upgrades converge on a single row per position.
func (ds *DataStore) SaveEvaluation(ctx context.Context, key string, eval *uci.Evaluation) error {
	var row CachedEvaluation
	row.FromEvaluation(key, eval)
	err := ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fen_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score_cp", "mate_in", "has_mate", "best_move", "pv", "depth", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "save_evaluation").
			Component("datastore").
			Build()
	}
	return nil
}

// EvaluationCount reports how many evaluations are cached.
func (ds *DataStore) EvaluationCount(ctx context.Context) (int64, error) {
	var n int64
	if err := ds.DB.WithContext(ctx).Model(&CachedEvaluation{}).Count(&n).Error; err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "evaluation_count").
			Component("datastore").
			Build()
	}
	return n, nil
}

// PruneEvaluations deletes cache rows not updated since olderThan and
// returns the number removed.
func (ds *DataStore) PruneEvaluations(ctx context.Context, olderThan time.Time) (int64, error) {
	res := ds.DB.WithContext(ctx).Where("updated_at < ?", olderThan).Delete(&CachedEvaluation{})
	if res.Error != nil {
		return 0, errors.New(res.Error).
			Category(errors.CategoryDatabase).
			Context("operation", "prune_evaluations").
			Component("datastore").
			Build()
	}
	return res.RowsAffected, nil
}

// SaveGameAnalysis stores one game summary.
func (ds *DataStore) SaveGameAnalysis(ctx context.Context, analysis *GameAnalysis) error {
	if err := ds.DB.WithContext(ctx).Create(analysis).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "save_game_analysis").
			Component("datastore").
			Build()
	}
	return nil
}

// GetGameAnalysis fetches one stored game summary by ID.
func (ds *DataStore) GetGameAnalysis(ctx context.Context, id uint) (*GameAnalysis, error) {
	var analysis GameAnalysis
	err := ds.DB.WithContext(ctx).First(&analysis, id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Newf("game analysis %d not found", id).
			Category(errors.CategoryNotFound).
			Component("datastore").
			Build()
	case err != nil:
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "get_game_analysis").
			Component("datastore").
			Build()
	}
	return &analysis, nil
}

// RecentGameAnalyses returns the newest stored summaries, most recent
// first.
func (ds *DataStore) RecentGameAnalyses(ctx context.Context, limit int) ([]GameAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	var analyses []GameAnalysis
	err := ds.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&analyses).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "recent_game_analyses").
			Component("datastore").
			Build()
	}
	return analyses, nil
}

// performAutoMigration creates or upgrades the schema.
func performAutoMigration(db *gorm.DB, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&CachedEvaluation{}, &GameAnalysis{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Context("connection", connectionInfo).
			Component("datastore").
			Build()
	}
	return nil
}

// createGormLogger routes GORM's own logging through slog at warn level;
// query logging is too chatty for normal operation.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		slogWriter{logger: logging.ForService("datastore")},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Warn("gorm", "message", fmt.Sprintf(format, args...))
}
