package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"math-showcase/config"
	"math-showcase/models"
)

// RunStore speichert Normalisierungsläufe in PostgreSQL.
type RunStore struct {
	DB *gorm.DB
}

// OpenRunStore verbindet sich mit der Ledger-Datenbank und migriert die Tabelle.
func OpenRunStore(cfg *config.Config) (*RunStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}
	if err := db.AutoMigrate(&models.NormalizeRun{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &RunStore{DB: db}, nil
}

func (s *RunStore) StartRun(ctx context.Context, run *models.NormalizeRun) error {
	return s.DB.WithContext(ctx).Create(run).Error
}

// FinishRun schreibt Status, Zähler und Fehler des Laufs.
func (s *RunStore) FinishRun(ctx context.Context, run *models.NormalizeRun) error {
	return s.DB.WithContext(ctx).Model(&models.NormalizeRun{}).
		Where("run_id = ?", run.RunID).
		Updates(map[string]any{
			"finished_at":    run.FinishedAt,
			"status":         run.Status,
			"datasets":       run.Datasets,
			"pages":          run.Pages,
			"samples":        run.Samples,
			"fields_changed": run.FieldsChanged,
			"failed_file":    run.FailedFile,
			"error":          run.Error,
		}).Error
}

// RecentRuns liefert die letzten Läufe, neueste zuerst.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]models.NormalizeRun, error) {
	var runs []models.NormalizeRun
	err := s.DB.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}
