package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"math-showcase/config"
	"math-showcase/metrics"
	"math-showcase/models"
)

// Auslöser, wie sie im Run-Ledger stehen.
const (
	TriggerCLI  = "cli"
	TriggerCron = "cron"
	TriggerAPI  = "api"
)

// RunRecorder speichert Normalisierungsläufe. Ohne Recorder gibt es kein Ledger.
type RunRecorder interface {
	StartRun(ctx context.Context, run *models.NormalizeRun) error
	FinishRun(ctx context.Context, run *models.NormalizeRun) error
}

// RunResult fasst einen Batch-Lauf zusammen.
type RunResult struct {
	RunID         string
	Skipped       bool // raw root missing
	CopiedOnly    bool // output tree has no datasets directory
	Datasets      int
	Pages         int
	Samples       int
	FieldsChanged int
	Duration      time.Duration
}

// BatchService kopiert den Rohdatenbaum in den öffentlichen Baum und normalisiert
// dort jede Dataset-Page.
type BatchService struct {
	RawDir    string
	OutDir    string
	Workers   int
	Logger    *zap.Logger
	Validator *PageValidator
	Recorder  RunRecorder

	mu sync.Mutex
}

// NewBatchService baut einen BatchService aus der Konfiguration.
func NewBatchService(cfg *config.Config, logger *zap.Logger, recorder RunRecorder) (*BatchService, error) {
	validator, err := NewPageValidator(cfg.PageSchemaMode, logger)
	if err != nil {
		return nil, err
	}
	return &BatchService{
		RawDir:    cfg.RawDataDir,
		OutDir:    cfg.PublicDataDir,
		Workers:   cfg.NormalizeWorkers,
		Logger:    logger,
		Validator: validator,
		Recorder:  recorder,
	}, nil
}

// Run führt einen Batch-Lauf aus. Ein zweiter Aufruf während eines aktiven Laufs
// liefert ErrRunInProgress. Eine fehlerhafte Page bricht den Lauf mit *PageError ab.
func (s *BatchService) Run(ctx context.Context, trigger string) (*RunResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()
	return s.runLocked(ctx, trigger)
}

// RunAsync startet einen Lauf im Hintergrund. Läuft bereits einer, kommt sofort
// ErrRunInProgress zurück, statt sich anzustellen.
func (s *BatchService) RunAsync(ctx context.Context, trigger string) error {
	if !s.mu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer s.mu.Unlock()
		_, _ = s.runLocked(ctx, trigger)
	}()
	return nil
}

func (s *BatchService) runLocked(ctx context.Context, trigger string) (*RunResult, error) {
	run := &models.NormalizeRun{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	if s.Recorder != nil {
		if err := s.Recorder.StartRun(ctx, run); err != nil {
			s.Logger.Warn("Failed to record run start", zap.String("run_id", run.RunID), zap.Error(err))
		}
	}

	log := s.Logger.With(zap.String("run_id", run.RunID), zap.String("trigger", trigger))
	log.Info("Normalization run started", zap.String("raw", s.RawDir), zap.String("out", s.OutDir))

	result, err := s.normalizeTree(ctx, log)
	result.RunID = run.RunID
	result.Duration = time.Since(run.StartedAt)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Datasets = result.Datasets
	run.Pages = result.Pages
	run.Samples = result.Samples
	run.FieldsChanged = result.FieldsChanged
	switch {
	case err != nil:
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		var pageErr *PageError
		if errors.As(err, &pageErr) {
			run.FailedFile = pageErr.Path
		}
	case result.Skipped:
		run.Status = models.RunStatusSkipped
	default:
		run.Status = models.RunStatusSucceeded
	}
	if s.Recorder != nil {
		// Ledger-Fehler lassen keinen Lauf scheitern
		if err := s.Recorder.FinishRun(ctx, run); err != nil {
			s.Logger.Warn("Failed to record run result", zap.String("run_id", run.RunID), zap.Error(err))
		}
	}

	metrics.BatchRuns.WithLabelValues(run.Status).Inc()
	metrics.BatchDuration.Observe(result.Duration.Seconds())

	if err != nil {
		log.Error("Normalization run failed", zap.Error(err))
		return result, err
	}
	log.Info("Normalization run finished",
		zap.String("status", run.Status),
		zap.Int("datasets", result.Datasets),
		zap.Int("pages", result.Pages),
		zap.Int("samples", result.Samples),
		zap.Int("fields_changed", result.FieldsChanged),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *BatchService) normalizeTree(ctx context.Context, log *zap.Logger) (*RunResult, error) {
	result := &RunResult{}

	copied, err := CopyTree(s.RawDir, s.OutDir)
	if err != nil {
		return result, err
	}
	if !copied {
		log.Info("Raw data directory not found, nothing to do")
		result.Skipped = true
		return result, nil
	}

	datasetsDir := filepath.Join(s.OutDir, "datasets")
	if _, err := os.Stat(datasetsDir); errors.Is(err, fs.ErrNotExist) {
		log.Info("No datasets directory after copy, stopping")
		result.CopiedOnly = true
		return result, nil
	}

	pages, datasets, err := listPageFiles(datasetsDir)
	if err != nil {
		return result, err
	}
	result.Datasets = datasets

	stats := make([]PageStats, len(pages))
	done := make([]bool, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))
	for i, path := range pages {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, err := s.normalizeFile(path)
			if err != nil {
				return &PageError{Path: path, Err: err}
			}
			stats[i], done[i] = st, true
			return nil
		})
	}
	err = g.Wait()

	for i, st := range stats {
		if !done[i] {
			continue
		}
		result.Pages++
		result.Samples += st.Samples
		result.FieldsChanged += st.FieldsChanged
	}
	metrics.PagesNormalized.Add(float64(result.Pages))
	metrics.FieldsChanged.Add(float64(result.FieldsChanged))
	return result, err
}

// normalizeFile schreibt eine Page-Datei an Ort und Stelle neu.
func (s *BatchService) normalizeFile(path string) (PageStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PageStats{}, err
	}
	page, err := decodePage(raw)
	if err != nil {
		return PageStats{}, fmt.Errorf("parse json: %w", err)
	}
	if err := s.Validator.Validate(path, page); err != nil {
		return PageStats{}, err
	}

	normalized, stats := NormalizeDatasetPage(page)
	out, err := encodePage(normalized)
	if err != nil {
		return PageStats{}, fmt.Errorf("encode json: %w", err)
	}
	if err := writeFileAtomic(path, out); err != nil {
		return PageStats{}, fmt.Errorf("write: %w", err)
	}
	return stats, nil
}

// listPageFiles liefert datasets/<id>/pages/*.json in lexikalischer Reihenfolge
// und die Anzahl der Datasets mit pages-Verzeichnis.
func listPageFiles(datasetsDir string) ([]string, int, error) {
	entries, err := os.ReadDir(datasetsDir)
	if err != nil {
		return nil, 0, err
	}

	var pages []string
	datasets := 0
	for _, dataset := range entries {
		if !dataset.IsDir() {
			continue
		}
		pagesDir := filepath.Join(datasetsDir, dataset.Name(), "pages")
		files, err := os.ReadDir(pagesDir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		datasets++
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			pages = append(pages, filepath.Join(pagesDir, f.Name()))
		}
	}
	sort.Strings(pages)
	return pages, datasets, nil
}
