package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIAddr         string
	PostgresURL     string
	DataInRoot      string
	StoreRoot       string
	RunsRoot        string
	ChunkSize       int
	ChunkOverlap    int
	EmbedDim        int
	EmbedBatchSize  int
	EmbedMaxRetries int
	EmbedBackoffMS  int
	EmbedProviders  string
}

func Load() Config {
	return Config{
		APIAddr:         getenv("LECTIO_API_ADDR", ":8080"),
		PostgresURL:     getenv("LECTIO_POSTGRES_URL", ""),
		DataInRoot:      getenv("LECTIO_DATA_IN", "./data/pdfs"),
		StoreRoot:       getenv("LECTIO_STORE_ROOT", "./data/vector_store"),
		RunsRoot:        getenv("LECTIO_RUNS_ROOT", "./data/runs"),
		ChunkSize:       getenvInt("LECTIO_CHUNK_SIZE", 500),
		ChunkOverlap:    getenvInt("LECTIO_CHUNK_OVERLAP", 50),
		EmbedDim:        getenvInt("LECTIO_EMBED_DIM", 1536),
		EmbedBatchSize:  getenvInt("LECTIO_EMBED_BATCH_SIZE", 32),
		EmbedMaxRetries: getenvInt("LECTIO_EMBED_MAX_RETRIES", 3),
		EmbedBackoffMS:  getenvInt("LECTIO_EMBED_BACKOFF_MS", 500),
		EmbedProviders:  getenv("LECTIO_EMBED_PROVIDERS", "mock"),
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
