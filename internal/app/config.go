package app

import (
	"github.com/safedata/safedata-server/internal/platform/envutil"
)

// Config holds the process-level settings that are not Postgres connection
// parameters (those live with the db package).
type Config struct {
	// Port the HTTP server listens on.
	Port string

	// UploadToken is the shared secret that gates the metadata and
	// gazetteer write endpoints. Empty means writes are disabled.
	UploadToken string

	// LocalEPSG is the projected coordinate system used for distance
	// searches and stored local geometries. Defaults to UTM 50N.
	LocalEPSG int

	// StaticDir is where the gazetteer and location-alias snapshot files
	// are persisted and served from.
	StaticDir string

	// LogMode selects the zap config ("development" or "production").
	LogMode string
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "8080"),
		UploadToken: envutil.String("SAFEDATA_UPLOAD_TOKEN", ""),
		LocalEPSG:   envutil.Int("SAFEDATA_LOCAL_EPSG", 32650),
		StaticDir:   envutil.String("SAFEDATA_STATIC_DIR", "static"),
		LogMode:     envutil.String("LOG_MODE", "development"),
	}
}
