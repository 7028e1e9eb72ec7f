package initializers

import (
	"github.com/Kariqs/galio-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func SyncDatabase(db *gorm.DB) {
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	log.Info().Msg("database synced successfully")
}
