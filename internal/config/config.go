// Package config is the environment-backed configuration loader used by
// the service bootstrap (cmd/resq-service/main.go).
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime config values used by main.go.
type Config struct {
	ListenAddr  string // RESQ_ADDR (default :8080)
	DatabaseURL string // DATABASE_URL (empty means in-memory store)

	KafkaBrokers []string // RESQ_KAFKA_BROKERS, comma separated
	KafkaTopic   string   // RESQ_KAFKA_TOPIC (default resq.events)

	ArchiveBucket string // RESQ_ARCHIVE_BUCKET (empty disables archiving)
	ArchivePrefix string // RESQ_ARCHIVE_PREFIX

	JWTSecret          string // RESQ_JWT_SECRET
	AllowDemoPrincipal bool   // RESQ_ALLOW_DEMO_PRINCIPAL (default true when no secret is set)
}

// LoadFromEnv reads config values from environment variables.
func LoadFromEnv() *Config {
	cfg := &Config{
		ListenAddr:    os.Getenv("RESQ_ADDR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		KafkaTopic:    os.Getenv("RESQ_KAFKA_TOPIC"),
		ArchiveBucket: os.Getenv("RESQ_ARCHIVE_BUCKET"),
		ArchivePrefix: os.Getenv("RESQ_ARCHIVE_PREFIX"),
		JWTSecret:     os.Getenv("RESQ_JWT_SECRET"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "resq.events"
	}
	if v := os.Getenv("RESQ_KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	// Without a signing secret there is no way to verify tokens, so
	// the demo principal defaults on.
	cfg.AllowDemoPrincipal = cfg.JWTSecret == ""
	if v := os.Getenv("RESQ_ALLOW_DEMO_PRINCIPAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowDemoPrincipal = b
		}
	}

	return cfg
}
