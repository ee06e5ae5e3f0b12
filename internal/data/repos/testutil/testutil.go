package testutil

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// DB opens the integration test database or skips the test. The DSN must
// point at a PostGIS-enabled database that the test may write to.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping database test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	return db
}

// Migrate brings the test database up to the server schema, including the
// alias uniqueness index the migrator adds outside AutoMigrate.
func Migrate(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		t.Fatalf("enable postgis: %v", err)
	}
	err := db.AutoMigrate(
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
		t.Fatalf("migrate test schema: %v", err)
	}
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_gazetteer_alias_scope
		ON gazetteer_alias (COALESCE(zenodo_record_id, -1), alias)
	`).Error; err != nil {
		t.Fatalf("create alias unique index: %v", err)
	}
}

// Tx runs the test inside a transaction that always rolls back, keeping
// the test database clean between cases.
func Tx(t *testing.T, db *gorm.DB) *gorm.DB {
	t.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin test transaction: %v", tx.Error)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func Logger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}
