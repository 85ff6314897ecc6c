package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/google"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/tidepool-org/go-common"
	muxprom "gitlab.com/msvechla/mux-prometheus/pkg/middleware"

	"github.com/mdblp/health-tracker/advice"
	"github.com/mdblp/health-tracker/api"
	"github.com/mdblp/health-tracker/auth"
	"github.com/mdblp/health-tracker/config"
	"github.com/mdblp/health-tracker/infrastructure"
	"github.com/mdblp/health-tracker/usecase"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "health-tracker").Logger()
	// go-common clients log through the standard logger
	stdLogger := log.New(logger, "", 0)

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatal().Err(err).Msg("problem loading config")
	}
	if !cfg.AuthEnabled() {
		logger.Fatal().Msg("env var GOOGLE_CLIENT_ID or AUTH_AUDIENCE is not provided or empty")
	}

	var db usecase.DocumentDatabase
	switch cfg.Backend {
	case config.BackendMongo:
		mongoDatabase, err := infrastructure.NewMongoDatabase(&cfg.Mongo, stdLogger, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("mongo")
		}
		defer mongoDatabase.Close()
		mongoDatabase.Start()
		db = mongoDatabase
	case config.BackendPostgres:
		pgDatabase, err := infrastructure.NewPostgresDatabase(context.Background(), cfg.PgURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pgDatabase.Close()
		db = pgDatabase
	default:
		logger.Warn().Msg("using the in-memory database, documents are lost on exit")
		db = infrastructure.NewMemoryDatabase()
	}

	downloader, archive := newDownloader(cfg, logger)

	tokenValidator, err := auth.NewValidator(auth.Config{IssuerURL: cfg.AuthIssuer, Audience: cfg.AuthAudience})
	if err != nil {
		logger.Fatal().Err(err).Msg("auth validator")
	}
	var tokens auth.TokenSource
	if cfg.GoogleClientID != "" {
		tokens = auth.NewGoogleDeviceTokenSource(cfg.GoogleClientID, cfg.GoogleClientSecret, func(verificationURI string, userCode string) {
			logger.Info().Str("url", verificationURI).Str("code", userCode).Msg("open the url and enter the code to sign in")
		})
		goth.UseProviders(google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL("google"), "email", "profile", "openid"))
	}
	authClient := auth.NewClient(logger, tokenValidator, tokens)

	advisor, err := advice.NewClient(logger, cfg.GeminiAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("advice client")
	}
	if !advisor.Configured() {
		logger.Info().Msg("env var GEMINI_API_KEY is not provided, advice is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := usecase.NewSession(logger, db, authClient, usecase.SessionConfig{AppID: cfg.AppID, Location: cfg.Location})
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		session.Run(ctx)
	}()

	/*
	 * Instrumentation setup
	 */
	instrumentation := muxprom.NewCustomInstrumentation(true, "health", "tracker", prometheus.DefBuckets, nil, prometheus.DefaultRegisterer)
	rtr := mux.NewRouter()
	rtr.Use(instrumentation.Middleware)
	rtr.Path("/metrics").Handler(promhttp.Handler())

	trackerAPI := api.InitAPI(api.Config{
		Session:       session,
		Database:      db,
		Exporter:      usecase.NewExporter(logger, db, cfg.AppID, downloader).WithLocation(cfg.Location),
		Archive:       archive,
		Reporter:      usecase.NewReporter(logger, db, cfg.AppID),
		Advisor:       advisor,
		Auth:          authClient,
		SessionSecret: cfg.SessionSecret,
		Logger:        logger,
	})
	trackerAPI.SetHandlers("", rtr)

	gzipHandler := handlers.CompressHandler(rtr)

	done := make(chan bool)
	server := common.NewServer(&http.Server{
		Addr:    cfg.Addr(),
		Handler: gzipHandler,
	})
	logger.Info().Str("addr", cfg.Addr()).Str("backend", string(cfg.Backend)).Msg("starting")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("listen")
	}

	// Wait for SIGINT (Ctrl+C) or SIGTERM to stop the service
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		server.Close()
		cancel()
		select {
		case <-sessionDone:
		case <-time.After(5 * time.Second):
			logger.Warn().Msg("session did not close in time")
		}
		done <- true
	}()

	<-done
}

// newDownloader archives to S3 when EXPORT_BUCKET is set, otherwise to EXPORT_DIR
func newDownloader(cfg *config.Config, logger zerolog.Logger) (usecase.Downloader, bool) {
	if cfg.ExportBucket == "" {
		fileDownloader, err := infrastructure.NewFileDownloader(cfg.ExportDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", cfg.ExportDir).Msg("archive disabled")
			return nil, false
		}
		return fileDownloader, true
	}

	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.S3EndpointURL != "" {
			logger.Info().Str("url", cfg.S3EndpointURL).Msg("using custom s3 endpoint")
			return aws.Endpoint{
				PartitionID:       "aws",
				URL:               cfg.S3EndpointURL,
				SigningRegion:     region,
				HostnameImmutable: true,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithEndpointResolverWithOptions(customResolver), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		logger.Fatal().Err(err).Msg("aws config")
	}
	uploader, err := infrastructure.NewS3Uploader(s3.NewFromConfig(awsCfg), cfg.ExportBucket)
	if err != nil {
		logger.Fatal().Err(err).Msg("s3 uploader")
	}
	return uploader, true
}
