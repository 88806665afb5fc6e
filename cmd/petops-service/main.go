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

	"github.com/raigotchi/petops/internal/archive"
	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/httpserver"
	"github.com/raigotchi/petops/internal/journal"
	"github.com/raigotchi/petops/internal/service"
	"github.com/raigotchi/petops/internal/signing"
	"github.com/raigotchi/petops/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	var jnl journal.Journal
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Fatalf("db ping: %v", err)
		}
		pg := journal.NewPGJournal(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("journal schema: %v", err)
		}
		jnl = pg
	} else {
		log.Printf("[startup] no database configured, journaling in memory")
		jnl = journal.NewMemoryJournal()
	}

	gw, err := gateway.NewHTTPClient(gateway.HTTPClientConfig{
		BaseURL: cfg.NodeURL,
		Timeout: 10 * time.Second,
		Retries: 2,
	})
	if err != nil {
		log.Fatalf("ledger gateway init: %v", err)
	}

	signer, err := signing.NewSignerFromConfig(cfg)
	if err != nil {
		log.Fatalf("signer init: %v", err)
	}

	var pub stream.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := stream.NewKafkaPublisher(stream.KafkaPublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka publisher init: %v", err)
		}
		defer kp.Close()
		pub = kp
	}

	var arch archive.Archiver
	if cfg.ArchiveBucket != "" {
		a, err := archive.NewS3Archiver(context.Background(), cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.Fatalf("receipt archiver init: %v", err)
		}
		arch = a
	}

	svc := service.New(cfg, gw, signer, jnl, pub, arch)
	server := httpserver.New(cfg, svc, jnl)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("petops service listening on %s (actor %s)", cfg.Addr, cfg.ActorAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
