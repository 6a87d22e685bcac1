package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/avatar"
	"taskflow/internal/mailer"
	"taskflow/internal/server"
	"taskflow/internal/service"
	db "taskflow/repository/db"
	inmemory "taskflow/repository/inmemory"
	"taskflow/repository/mongodb"

	"github.com/redis/go-redis/v9"
)

type apiServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	log.Println("[INFO] TaskFlow service starting...")

	cfg := server.ReadConfig()

	repo, closeRepo := openRepository(cfg)
	defer closeRepo()

	collab, closeCollab := buildCollaborators(context.Background(), cfg)
	defer closeCollab()

	api := server.NewTaskAPI(cfg, repo, collab)
	if api == nil {
		log.Fatal("[ERROR] Failed to initialise API")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("[INFO] Listening on %s (storage=%s, env=%s)", cfg.ListenAddr(), cfg.Storage, cfg.Env)
	if err := serve(api, sigChan, 30*time.Second); err != nil {
		log.Printf("[ERROR] Server error: %v", err)
	}
	log.Println("[INFO] TaskFlow service stopped")
}

// serve runs api until it fails or a signal arrives, then shuts it down
// within timeout.
func serve(api apiServer, sigChan <-chan os.Signal, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- api.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Printf("[INFO] Received %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			log.Printf("[ERROR] Graceful shutdown failed: %v", err)
			return err
		}
		log.Println("[SUCCESS] Graceful shutdown completed")
		return nil

	case err := <-serverErr:
		return err
	}
}

// openRepository connects the configured backend. When a database is
// unreachable the service keeps running on in-memory storage.
func openRepository(cfg *server.Config) (service.Repository, func()) {
	switch cfg.Storage {
	case server.StoragePostgres:
		if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
			log.Println("[WARN] Migrations were not applied:", err)
		} else {
			log.Println("[SUCCESS] Migrations applied")
		}
		store, err := db.NewStorage(cfg.DBStr)
		if err != nil {
			log.Println("[WARN] PostgreSQL unavailable, using in-memory storage:", err)
			break
		}
		return store, store.Close

	case server.StorageMongo:
		store, err := mongodb.NewStorage(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Println("[WARN] MongoDB unavailable, using in-memory storage:", err)
			break
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Println("[WARN] Failed to disconnect from MongoDB:", err)
			}
		}
	}
	return inmemory.NewStorage(), func() {}
}

// buildCollaborators picks the mail, avatar and redis backends from cfg.
// Unset sections keep the local defaults of the API.
func buildCollaborators(ctx context.Context, cfg *server.Config) (server.Collaborators, func()) {
	var c server.Collaborators
	closers := []func(){}

	smtpCfg := mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	if smtpCfg.Enabled() {
		c.Mailer = mailer.NewSMTPSender(smtpCfg)
		log.Println("[INFO] Reset codes are sent through", smtpCfg.Host)
	}

	if cfg.S3.Bucket != "" {
		store, err := avatar.NewS3Store(ctx, avatar.S3Config{
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.Endpoint,
			PublicURL:    cfg.S3.PublicURL,
		})
		if err != nil {
			log.Println("[WARN] S3 avatar storage unavailable, storing on disk:", err)
		} else {
			c.Avatars = store
		}
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Println("[WARN] Redis is not reachable, rate limiting fails open:", err)
		}
		cancel()
		c.Redis = rdb
		closers = append(closers, func() { _ = rdb.Close() })
	}

	return c, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
