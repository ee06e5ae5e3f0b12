package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/envutil"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(baseLog *logger.Logger) (*PostgresService, error) {
	log := baseLog.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "safedata")
	sslmode := envutil.String("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslmode)

	log.Info("connecting to postgres", "host", host, "port", port, "database", name)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		return nil, fmt.Errorf("enable postgis extension: %w", err)
	}

	return &PostgresService{db: gdb, log: log}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("migrating postgres tables")
	err := s.db.AutoMigrate(
		&domain.PublishedDataset{},
		&domain.DatasetFile{},
		&domain.DatasetTaxon{},
		&domain.DatasetLocation{},
		&domain.DatasetWorksheet{},
		&domain.DatasetField{},
		&domain.DatasetAuthor{},
		&domain.DatasetFunder{},
		&domain.DatasetPermit{},
		&domain.DatasetKeyword{},
		&domain.GazetteerLocation{},
		&domain.GazetteerAlias{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// A null scope means a global alias; COALESCE folds it into the unique
	// key so the same alias cannot be registered globally twice.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_gazetteer_alias_scope
		ON gazetteer_alias (COALESCE(zenodo_record_id, -1), alias)
	`).Error; err != nil {
		return fmt.Errorf("create alias unique index: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_published_datasets_extent_local
		 ON published_datasets USING GIST (geographic_extent_local)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_locations_wkt_local
		 ON dataset_locations USING GIST (wkt_local)`,
		`CREATE INDEX IF NOT EXISTS idx_gazetteer_wkt_local
		 ON gazetteer USING GIST (wkt_local)`,
	} {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create spatial index: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
