package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"math-showcase/config"
	"math-showcase/services"
	"math-showcase/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "math-showcase",
		Short:        "Math dataset gallery and tokenized LaTeX normalizer",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newNormalizeCmd(), newRepairCmd(), newCleanCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the gallery API and run scheduled normalization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logging, err := setup()
			if err != nil {
				return err
			}
			defer logging.Sync()
			return serve(cfg, logging)
		},
	}
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Copy the raw data tree to the public tree and normalize every dataset page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logging, err := setup()
			if err != nil {
				return err
			}
			defer logging.Sync()

			batch, err := newBatchService(cfg, logging)
			if err != nil {
				return err
			}
			res, err := batch.Run(cmd.Context(), services.TriggerCLI)
			if err != nil {
				return err
			}
			switch {
			case res.Skipped:
				fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist, nothing to do\n", cfg.RawDataDir)
			case res.CopiedOnly:
				fmt.Fprintf(cmd.OutOrStdout(), "copied %s to %s, no datasets to normalize\n", cfg.RawDataDir, cfg.PublicDataDir)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "normalized %d pages (%d samples, %d fields changed) in %d datasets\n",
					res.Pages, res.Samples, res.FieldsChanged, res.Datasets)
			}
			return nil
		},
	}
}

func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Repair control-character corrupted LaTeX read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeText(cmd, services.RepairLatex)
		},
	}
}

func newCleanCmd() *cobra.Command {
	var wrap bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean tokenized text read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wrap {
				return pipeText(cmd, services.NormalizeMarkdownMath)
			}
			return pipeText(cmd, services.CleanTokenizedText)
		},
	}
	cmd.Flags().BoolVar(&wrap, "wrap", false, "also insert $ math delimiters")
	return cmd
}

func pipeText(cmd *cobra.Command, fn func(string) string) error {
	in, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), fn(string(in)))
	return err
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config load error: %w", err)
	}
	newLogger := zap.NewProduction
	if cfg.LogDevelopment {
		newLogger = zap.NewDevelopment
	}
	logging, err := newLogger()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	return cfg, logging, nil
}

// newBatchService bindet das Run-Ledger an, wenn DB_HOST gesetzt ist.
func newBatchService(cfg *config.Config, logging *zap.Logger) (*services.BatchService, error) {
	runs, err := openRunStore(cfg, logging)
	if err != nil {
		return nil, err
	}
	var recorder services.RunRecorder
	if runs != nil {
		recorder = runs
	}
	return services.NewBatchService(cfg, logging, recorder)
}

func openRunStore(cfg *config.Config, logging *zap.Logger) (*storage.RunStore, error) {
	if !cfg.LedgerEnabled() {
		return nil, nil
	}
	runs, err := storage.OpenRunStore(cfg)
	if err != nil {
		return nil, err
	}
	logging.Info("Successfully connected to run ledger database.")
	return runs, nil
}

func serve(cfg *config.Config, logging *zap.Logger) error {
	runs, err := openRunStore(cfg, logging)
	if err != nil {
		return err
	}
	var recorder services.RunRecorder
	var lister runLister
	if runs != nil {
		recorder, lister = runs, runs
	}
	batch, err := services.NewBatchService(cfg, logging, recorder)
	if err != nil {
		return err
	}
	gallery := services.NewGalleryService(cfg.PublicDataDir, logging)

	router := newRouter(cfg, gallery, batch, lister, logging)

	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled normalization job...")
			if _, err := batch.Run(context.Background(), services.TriggerCron); err != nil {
				if errors.Is(err, services.ErrRunInProgress) {
					logging.Warn("Skipping scheduled normalization, a run is in progress")
					return
				}
				logging.Error("Cron job failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid CRON_SCHEDULE %q: %w", cfg.CronSchedule, err)
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort), zap.String("data", cfg.PublicDataDir))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv.ListenAndServe()
}

func newRouter(cfg *config.Config, gallery *services.GalleryService, batch *services.BatchService, runs runLister, logging *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupDatasetRoutes(router, gallery, logging)
	setupTextRoutes(router, logging)
	setupNormalizeRoutes(router, cfg, batch, runs, logging)
	return router
}
