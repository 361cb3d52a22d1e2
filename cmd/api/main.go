// Command api serves the hiring pipeline HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/blob"
	"TalentPipe-backend/internal/changelog"
	"TalentPipe-backend/internal/config"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/ledger"
	"TalentPipe-backend/internal/lifecycle"
	"TalentPipe-backend/internal/notify"
	"TalentPipe-backend/internal/pipeline"
	"TalentPipe-backend/internal/scoring"
	"TalentPipe-backend/internal/server"
	"TalentPipe-backend/internal/stagemachine"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Logger()
	defer func() { _ = cfg.Close() }()

	if cfg.SecretKey == "" {
		log.Fatal("SECRET_KEY must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDBInstance(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("database failed to initialize")
	}
	defer func() { _ = db.Close() }()

	var (
		sink        notify.Sink = notify.NewLog(log)
		revocations auth.RevocationStore
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable at startup")
		}
		sink = notify.NewRedisWithClient(client, cfg.Redis.Channel)
		revocations = auth.NewRedisRevocationStore(client)
	} else {
		revocations = auth.NewInMemoryRevocationStore(ctx, 10*time.Minute)
	}

	var blobs blob.Store = blob.NewDatabase(db.DB)
	if cfg.Blob.Backend == "gcs" {
		gcs, err := blob.NewCloudStorage(ctx, option.WithUserAgent("talentpipe-backend"))
		if err != nil {
			log.WithError(err).Fatal("cloud storage failed to initialize")
		}
		defer func() { _ = gcs.Close() }()
		blobs = gcs
	}

	var oracle scoring.Oracle = scoring.Disabled{}
	if cfg.OpenAI.APIKey != "" {
		oracle = scoring.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	changes := changelog.NewRecorder()
	stages := pipeline.NewStore(changes, log)
	applications := stagemachine.New(stagemachine.Deps{
		DB:       db.DB,
		Pipeline: stages,
		Ledger:   ledger.New(stages, log),
		Oracle:   oracle,
		Blobs:    blobs,
		Sink:     sink,
		Bucket:   cfg.Blob.Bucket,
		Log:      log,
	})

	srv := server.NewServer(cfg, server.Deps{
		DB: db,
		Jobs: lifecycle.New(lifecycle.Deps{
			DB:           db.DB,
			Pipeline:     stages,
			Changes:      changes,
			Sink:         sink,
			SlugAttempts: cfg.SlugMaxAttempts,
			Log:          log,
		}),
		Applications: applications,
		Blobs:       blobs,
		Signer:      auth.NewSigner(cfg.SecretKey, cfg.TokenTTL),
		Revocations: revocations,
		Log:         log,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}

	log.Info("waiting for pending scoring")
	applications.Wait()
}
