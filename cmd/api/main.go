package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"lectio/internal/api"
	"lectio/internal/config"
	"lectio/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	var db *storage.DB
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			cancel()
			log.Fatal(err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatal(err)
		}
		cancel()
		defer db.Close()
	} else {
		log.Printf("LECTIO_POSTGRES_URL not set, catalog endpoints disabled")
	}

	srv := api.NewServer(cfg, db)
	log.Printf("lectio api listening on %s", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}
