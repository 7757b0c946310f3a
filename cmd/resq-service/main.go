package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/resqlabs/resq/internal/archive"
	"github.com/resqlabs/resq/internal/auth"
	"github.com/resqlabs/resq/internal/config"
	"github.com/resqlabs/resq/internal/fanout"
	"github.com/resqlabs/resq/internal/httpserver"
	"github.com/resqlabs/resq/internal/incident"
	"github.com/resqlabs/resq/internal/sos"
	"github.com/resqlabs/resq/internal/stats"
	"github.com/resqlabs/resq/internal/store"
	"github.com/resqlabs/resq/internal/triage"
)

func main() {
	cfg := config.LoadFromEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup := openStore(cfg)
	defer cleanup()

	hub := fanout.NewHub()
	go hub.Run(ctx)

	publishers := fanout.Multi{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := fanout.NewKafkaPublisher(fanout.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("[startup] kafka init: %v", err)
		}
		defer kp.Close()
		publishers = append(publishers, kp)
		log.Printf("[startup] kafka fan-out enabled: %v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	triageSvc := triage.New(st, publishers)
	sosSvc := sos.New(st, publishers)
	incidentSvc := incident.New(st, publishers)
	statsSvc := stats.New(st)

	if cfg.ArchiveBucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.Fatalf("[startup] archive init: %v", err)
		}
		triageSvc.WithArchiver(archiver)
		sosSvc.WithArchiver(archiver)
		log.Printf("[startup] archiving to s3://%s/%s", cfg.ArchiveBucket, cfg.ArchivePrefix)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.AllowDemoPrincipal)
	if cfg.AllowDemoPrincipal {
		log.Printf("[startup] demo principal enabled; unauthenticated requests run as %s", auth.DemoPrincipal.UserID)
	}

	server := httpserver.New(triageSvc, sosSvc, incidentSvc, statsSvc, st, hub, verifier)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("[startup] dispatch core listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer)
}

// openStore picks Postgres when DATABASE_URL is set and falls back to
// the in-memory store for local development.
func openStore(cfg *config.Config) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		log.Printf("[startup] DATABASE_URL not set, using in-memory store")
		return store.NewMemoryStore(), func() {}
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	return store.NewPGStore(db), func() { db.Close() }
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
