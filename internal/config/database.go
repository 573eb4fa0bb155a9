package config

import (
	"log"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDatabase opens the Postgres connection and migrates the persisted
// record shapes.
func InitDatabase(cfg *Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&domain.Appointment{}, &domain.ConsultationRecord{}); err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}

	return db
}
