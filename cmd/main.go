package main

import (
	"log"

	"github.com/telemedconnect/telemed-session-service/internal/config"
	"github.com/telemedconnect/telemed-session-service/internal/di"
)

func main() {
	cfg := config.Load()
	di.EnsureTopicExists(cfg.KafkaBroker, cfg.KafkaTopic)
	server := di.HTTPSetup(cfg)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Failed to serve HTTP server: %v", err)
	}
}
