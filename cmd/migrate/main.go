package main

import (
	"flag"

	"github.com/rs/zerolog/log"
	"wazeapp/internal/pkg/logger"
	"wazeapp/internal/platform/config"
	"wazeapp/internal/platform/database"
	"wazeapp/migrations"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging, "migrate")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(db, migrations.FS(), *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	}

	log.Info().Str("direction", *direction).Msg("migration completed successfully")
}
