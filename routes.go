package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"math-showcase/config"
	"math-showcase/models"
	"math-showcase/services"
)

const defaultRunsLimit = 20

// runLister liefert die letzten Läufe aus dem Run-Ledger.
type runLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.NormalizeRun, error)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// respondError übersetzt Service-Fehler in HTTP-Statuscodes.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func setupDatasetRoutes(router *gin.Engine, gallery *services.GalleryService, log *zap.Logger) {
	rg := router.Group("/datasets")

	rg.GET("", func(c *gin.Context) {
		idx, err := gallery.LoadIndex()
		if err != nil {
			respondError(c, log, err)
			return
		}
		filtered := services.FilterDatasets(idx.Datasets, c.Query("q"))
		c.JSON(http.StatusOK, gin.H{
			"datasets": filtered,
			"shown":    len(filtered),
			"total":    len(idx.Datasets),
		})
	})

	rg.GET("/:id", func(c *gin.Context) {
		meta, err := gallery.LoadMeta(c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, meta)
	})

	// Seitenzahlen < 1 oder ungültige Werte zeigen Seite 1
	rg.GET("/:id/pages/:page", func(c *gin.Context) {
		page, err := strconv.Atoi(c.Param("page"))
		if err != nil || page < 1 {
			page = 1
		}
		view, err := gallery.ViewPage(c.Param("id"), page, c.Query("q"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})
}

func setupTextRoutes(router *gin.Engine, log *zap.Logger) {
	type textRequest struct {
		Text *string `json:"text" binding:"required"`
	}
	rg := router.Group("/text")

	// POST - Runtime-Reparatur vor dem Rendern
	rg.POST("/repair", func(c *gin.Context) {
		var req textRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warn("Invalid request body for text repair", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'text' field is required."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": services.RepairLatex(*req.Text)})
	})

	// POST - Cleaner + Math-Wrapping wie im Batch-Lauf
	rg.POST("/normalize", func(c *gin.Context) {
		var req textRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warn("Invalid request body for text normalization", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'text' field is required."})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"cleaned": services.CleanTokenizedText(*req.Text),
			"text":    services.NormalizeMarkdownMath(*req.Text),
		})
	})
}

func setupNormalizeRoutes(router *gin.Engine, cfg *config.Config, batch *services.BatchService, runs runLister, log *zap.Logger) {
	rg := router.Group("/normalize")
	rg.Use(apiKeyAuthMiddleware(cfg))

	rg.POST("/run", func(c *gin.Context) {
		if err := batch.RunAsync(context.Background(), services.TriggerAPI); err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Normalization run triggered."})
	})

	rg.GET("/runs", func(c *gin.Context) {
		if runs == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run ledger not configured"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRunsLimit)))
		if err != nil || limit < 1 || limit > 200 {
			limit = defaultRunsLimit
		}
		list, err := runs.RecentRuns(c.Request.Context(), limit)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})
}
