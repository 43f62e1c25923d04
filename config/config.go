package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Schema-Modi für die Validierung der Dataset-Pages vor der Normalisierung.
const (
	SchemaModeOff    = "off"
	SchemaModeWarn   = "warn"
	SchemaModeStrict = "strict"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	RawDataDir    string `envconfig:"RAW_DATA_DIR" default:"raw/data"`
	PublicDataDir string `envconfig:"PUBLIC_DATA_DIR" default:"public/data"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Leer = kein geplanter Lauf
	CronSchedule     string `envconfig:"CRON_SCHEDULE"`
	NormalizeWorkers int    `envconfig:"NORMALIZE_WORKERS" default:"1"`
	PageSchemaMode   string `envconfig:"PAGE_SCHEMA_MODE" default:"warn"`

	LogDevelopment bool `envconfig:"LOG_DEVELOPMENT" default:"false"`

	// Optionales Run-Ledger in PostgreSQL, nur aktiv wenn DB_HOST gesetzt ist.
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"math_showcase"`

	// S3-Ziel für veröffentlichte Snapshots des Output-Baums
	S3URL         string `envconfig:"S3_URL"`
	S3Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Key         string `envconfig:"S3_KEY"`
	S3Secret      string `envconfig:"S3_SECRET"`
	S3Bucket      string `envconfig:"S3_BUCKET"`
	S3Prefix      string `envconfig:"S3_PREFIX" default:"gallery"`
	KeepSnapshots int    `envconfig:"KEEP_SNAPSHOTS" default:"4"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// LedgerEnabled meldet, ob ein Run-Ledger konfiguriert ist.
func (c *Config) LedgerEnabled() bool {
	return strings.TrimSpace(c.DBHost) != ""
}

// S3Enabled meldet, ob alle Angaben für den S3-Upload vorhanden sind.
func (c *Config) S3Enabled() bool {
	return c.S3URL != "" && c.S3Bucket != "" && c.S3Key != "" && c.S3Secret != ""
}

// Validate prüft Werte, die envconfig selbst nicht prüfen kann.
func (c *Config) Validate() error {
	switch c.PageSchemaMode {
	case SchemaModeOff, SchemaModeWarn, SchemaModeStrict:
	default:
		return fmt.Errorf("PAGE_SCHEMA_MODE must be one of off|warn|strict, got %q", c.PageSchemaMode)
	}
	if c.NormalizeWorkers < 1 {
		return fmt.Errorf("NORMALIZE_WORKERS must be >= 1, got %d", c.NormalizeWorkers)
	}
	if c.KeepSnapshots < 1 {
		return fmt.Errorf("KEEP_SNAPSHOTS must be >= 1, got %d", c.KeepSnapshots)
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return &c, err
	}
	return &c, c.Validate()
}
