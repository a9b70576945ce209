package app

import (
	"github.com/selftune/selftune-backend/internal/pkg/envutil"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

type Config struct {
	HTTPAddr    string
	SeedCatalog bool
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		HTTPAddr:    envutil.GetEnv("HTTP_ADDR", ":8080", log),
		SeedCatalog: envutil.GetEnvAsBool("SEED_CATALOG", true, log),
	}
}
