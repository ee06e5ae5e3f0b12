package repos

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// ErrDuplicateAlias reports a (scope, alias) pair that already exists.
var ErrDuplicateAlias = errors.New("duplicate alias for scope")

// GazetteerRow is one gazetteer feature ready for insertion: the scalar
// properties plus the raw GeoJSON geometry handed to the spatial engine.
type GazetteerRow struct {
	Location     string
	LocationType string
	CentroidX    *float64
	CentroidY    *float64
	BboxXmin     *float64
	BboxXmax     *float64
	BboxYmin     *float64
	BboxYmax     *float64
	GeometryJSON string
}

// GazetteerRepo replaces the gazetteer and alias tables wholesale. The
// callers wrap every method of one replacement in a single transaction.
type GazetteerRepo interface {
	TruncateLocations(dbc dbctx.Context) error
	InsertLocation(dbc dbctx.Context, row GazetteerRow) error
	ReprojectLocations(dbc dbctx.Context, epsg int) error
	LocationExists(dbc dbctx.Context, name string) (bool, error)

	TruncateAliases(dbc dbctx.Context) error
	InsertAlias(dbc dbctx.Context, row *domain.GazetteerAlias) error
}

type gazetteerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGazetteerRepo(db *gorm.DB, baseLog *logger.Logger) GazetteerRepo {
	return &gazetteerRepo{db: db, log: baseLog.With("repo", "GazetteerRepo")}
}

func (r *gazetteerRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *gazetteerRepo) TruncateLocations(dbc dbctx.Context) error {
	// DELETE rather than TRUNCATE so the wipe stays inside the caller's
	// transaction on every Postgres configuration.
	if err := r.conn(dbc).WithContext(dbc.Ctx).Exec(`DELETE FROM gazetteer`).Error; err != nil {
		return fmt.Errorf("clear gazetteer: %w", err)
	}
	return nil
}

func (r *gazetteerRepo) InsertLocation(dbc dbctx.Context, row GazetteerRow) error {
	err := r.conn(dbc).WithContext(dbc.Ctx).Exec(
		`INSERT INTO gazetteer
		   (location, location_type, centroid_x, centroid_y,
		    bbox_xmin, bbox_xmax, bbox_ymin, bbox_ymax, wkt_wgs84)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ST_SetSRID(ST_GeomFromGeoJSON(?), 4326))`,
		row.Location, row.LocationType, row.CentroidX, row.CentroidY,
		row.BboxXmin, row.BboxXmax, row.BboxYmin, row.BboxYmax, row.GeometryJSON,
	).Error
	if err != nil {
		return fmt.Errorf("insert gazetteer location %q: %w", row.Location, err)
	}
	return nil
}

func (r *gazetteerRepo) ReprojectLocations(dbc dbctx.Context, epsg int) error {
	err := r.conn(dbc).WithContext(dbc.Ctx).Exec(
		`UPDATE gazetteer SET wkt_local = ST_Transform(wkt_wgs84, ?)`, epsg,
	).Error
	if err != nil {
		return fmt.Errorf("reproject gazetteer: %w", err)
	}
	return nil
}

func (r *gazetteerRepo) LocationExists(dbc dbctx.Context, name string) (bool, error) {
	var exists bool
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Raw(`SELECT EXISTS (SELECT 1 FROM gazetteer WHERE location = ?)`, name).
		Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("check gazetteer location: %w", err)
	}
	return exists, nil
}

func (r *gazetteerRepo) TruncateAliases(dbc dbctx.Context) error {
	if err := r.conn(dbc).WithContext(dbc.Ctx).Exec(`DELETE FROM gazetteer_alias`).Error; err != nil {
		return fmt.Errorf("clear gazetteer aliases: %w", err)
	}
	return nil
}

func (r *gazetteerRepo) InsertAlias(dbc dbctx.Context, row *domain.GazetteerAlias) error {
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("alias %q: %w", row.Alias, ErrDuplicateAlias)
		}
		return fmt.Errorf("insert gazetteer alias %q: %w", row.Alias, err)
	}
	return nil
}
