package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"3002"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	CORSOrigins  string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	// Externe bibliographische Quellen
	CrossrefBaseURL        string `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`
	ArxivBaseURL           string `envconfig:"ARXIV_BASE_URL" default:"http://export.arxiv.org/api/query"`
	SemanticScholarBaseURL string `envconfig:"SEMANTIC_SCHOLAR_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	SemanticScholarAPIKey  string `envconfig:"SEMANTIC_SCHOLAR_API_KEY"`
	ContactEmail           string `envconfig:"CONTACT_EMAIL" default:"mail@verifai.app"`
	SourceMaxResults       int    `envconfig:"SOURCE_MAX_RESULTS" default:"3"`
	EnabledSources         string `envconfig:"ENABLED_SOURCES" default:"crossref,arxiv,semantic_scholar,retracted"`

	// Retraction-Sweep über gespeicherte Citations
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Optionaler Redis-Fanout für Session-Events (leer = nur In-Memory)
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"verifai-events"`

	// S3-Ablage für hochgeladene Dokumente
	DocsS3Key    string `envconfig:"DOCS_S3_KEY" required:"true"`
	DocsS3Secret string `envconfig:"DOCS_S3_SECRET" required:"true"`
	DocsS3URL    string `envconfig:"DOCS_S3_URL" required:"true"`
	DocsS3Region string `envconfig:"DOCS_S3_REGION" required:"true"`
	DocsS3Bucket string `envconfig:"DOCS_S3_BUCKET" required:"true"`

	UploadMaxBytes int64 `envconfig:"UPLOAD_MAX_BYTES" default:"26214400"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
