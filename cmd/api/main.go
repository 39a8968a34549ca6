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

	_ "github.com/jackc/pgx/v5/stdlib"

	"tasktrail.org/internal/audit"
	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/chatbot"
	"tasktrail.org/internal/config"
	"tasktrail.org/internal/httpapi"
	"tasktrail.org/internal/obs"
	"tasktrail.org/internal/tasks"
)

var version = "0.3.1"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.SetLevel(cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	auditStore := audit.NewPGStore(db)
	auditSvc, err := audit.NewService(auditStore)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	signer, err := auth.NewTokenSigner(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}
	authStore := auth.NewPGStore(db)
	authSvc, err := auth.NewService(authStore, signer, auditStore)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	taskSvc, err := tasks.NewService(tasks.NewPGStore(db), authSvc.Evaluator(), auditStore)
	if err != nil {
		log.Fatalf("tasks: %v", err)
	}

	chat := chatbot.NewClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL)

	api := httpapi.New(
		authSvc,
		authSvc,
		taskSvc,
		auditSvc,
		authSvc.Evaluator(),
		auditStore,
		chat,
		httpapi.ReadyProbe{DB: db},
		httpapi.Config{
			Version:            version,
			RateLimitPerSecond: cfg.RateLimitPerSecond,
			RateLimitBurst:     cfg.RateLimitBurst,
			MaxBodyBytes:       cfg.MaxBodyBytes,
			AllowedOrigins:     cfg.AllowedOrigins,
		},
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tasktrail-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
