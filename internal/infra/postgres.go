package infra

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"reelcraft/internal/config"
	dbm "reelcraft/internal/models/db_models"
)

func InitPostgresql(cfg config.Config) (*gorm.DB, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.New("POSTGRES_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresURL), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	log.Info().Msg("connected to postgres")
	return db, nil
}

// Migrate creates or updates the ledger and campaign tables, including the
// credits >= 0 check and the unique payment reference index.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&dbm.Business{},
		&dbm.CreditTransaction{},
		&dbm.CreditUsageLog{},
		&dbm.Campaign{},
	)
}

func ClosePostgresql(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error().Err(err).Msg("getting database instance")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("closing database connection")
	} else {
		log.Info().Msg("postgres connection closed")
	}
}
