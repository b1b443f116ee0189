package db

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tokenbridge/internal/config"
	"tokenbridge/internal/models"
)

var DB *gorm.DB

// InitDB connects to the configured database and migrates the schema. An
// empty DSN is not an error: the service then runs without persistence and
// flows are kept in memory only.
func InitDB() error {
	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Println("database DSN not configured, running without persistence")
		return nil
	}

	dsn := config.AppConfig.Database.DSN
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	if err := DB.AutoMigrate(
		&models.BridgeFlow{},
		&models.DepositRecord{},
		&models.WithdrawRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Println("database connected and migrated")
	return nil
}
