package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidepool-org/go-common/clients/mongo"

	"github.com/mdblp/health-tracker/schema"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendMongo    Backend = "mongo"
	BackendPostgres Backend = "postgres"
)

const (
	defaultPort      = 8080
	defaultIssuer    = "https://accounts.google.com"
	defaultRegion    = "eu-west-1"
	defaultExportDir = "./exports"
)

// Config holds the settings of the health-tracker process
type Config struct {
	AppID   string
	Backend Backend
	Mongo   mongo.Config
	PgURL   string
	Port    int
	AppURL  string

	AuthIssuer         string
	AuthAudience       []string
	GoogleClientID     string
	GoogleClientSecret string
	SessionSecret      string

	GeminiAPIKey string

	ExportBucket  string
	Region        string
	S3EndpointURL string
	ExportDir     string

	// Location used to compose and display dates, from TZ
	Location *time.Location
}

// Load reads the environment, after loading the optional .env files
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppID:              orDefault(getenv("HEALTH_APP_NAMESPACE"), schema.DefaultAppID),
		Backend:            Backend(orDefault(getenv("HEALTH_BACKEND"), string(BackendMemory))),
		PgURL:              getenv("HEALTH_PG_URL"),
		Port:               defaultPort,
		AppURL:             getenv("APP_URL"),
		AuthIssuer:         orDefault(getenv("AUTH_ISSUER"), defaultIssuer),
		GoogleClientID:     getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: getenv("GOOGLE_CLIENT_SECRET"),
		SessionSecret:      getenv("SESSION_SECRET"),
		GeminiAPIKey:       getenv("GEMINI_API_KEY"),
		ExportBucket:       getenv("EXPORT_BUCKET"),
		Region:             orDefault(getenv("REGION"), defaultRegion),
		S3EndpointURL:      getenv("S3_ENDPOINT_URL"),
		ExportDir:          orDefault(getenv("EXPORT_DIR"), defaultExportDir),
		Location:           time.Local,
	}

	if port := getenv("HEALTH_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid HEALTH_PORT %q", port)
		}
		cfg.Port = p
	}

	switch cfg.Backend {
	case BackendMemory:
	case BackendMongo:
		cfg.Mongo.FromEnv()
	case BackendPostgres:
		if cfg.PgURL == "" {
			return nil, fmt.Errorf("HEALTH_PG_URL is required with the %s backend", cfg.Backend)
		}
	default:
		return nil, fmt.Errorf("unknown HEALTH_BACKEND %q", cfg.Backend)
	}

	for _, aud := range strings.Split(getenv("AUTH_AUDIENCE"), ",") {
		if aud = strings.TrimSpace(aud); aud != "" {
			cfg.AuthAudience = append(cfg.AuthAudience, aud)
		}
	}
	if len(cfg.AuthAudience) == 0 && cfg.GoogleClientID != "" {
		cfg.AuthAudience = []string{cfg.GoogleClientID}
	}

	if tz := getenv("TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ %q: %w", tz, err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

// Addr is the listen address of the api
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// CallbackURL is the redirect url registered with the oauth provider
func (c *Config) CallbackURL(provider string) string {
	base := c.AppURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	return strings.TrimSuffix(base, "/") + "/auth/" + provider + "/callback"
}

// AuthEnabled is true when ID tokens can be validated
func (c *Config) AuthEnabled() bool {
	return len(c.AuthAudience) > 0
}

func orDefault(v string, def string) string {
	if v == "" {
		return def
	}
	return v
}
