package repos

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/query"
)

// FieldRef names a column to project into search results.
type FieldRef struct {
	Table query.Table
	Name  string
}

// DefaultFields is the projection used when a caller does not ask for
// specific columns.
var DefaultFields = []FieldRef{
	{query.Datasets, "zenodo_concept_id"},
	{query.Datasets, "zenodo_record_id"},
	{query.Datasets, "dataset_title"},
}

// ExecOptions carries the shared filters every list endpoint accepts.
type ExecOptions struct {
	MostRecent bool
	IDs        []int64
	Fields     []FieldRef
}

// SearchResult is the uniform response shape: a count and flat records.
// Count always equals len(Entries).
type SearchResult struct {
	Count   int              `json:"count"`
	Entries []map[string]any `json:"entries"`
}

// SearchRepo executes declarative dataset queries and resolves query
// geometries for the spatial builders.
type SearchRepo interface {
	Execute(dbc dbctx.Context, q query.Query, opts ExecOptions) (*SearchResult, error)
	ResolveQueryGeometry(dbc dbctx.Context, location, wkt *string) (query.Geom, error)
}

type searchRepo struct {
	db        *gorm.DB
	log       *logger.Logger
	localEPSG int
}

func NewSearchRepo(db *gorm.DB, baseLog *logger.Logger, localEPSG int) SearchRepo {
	return &searchRepo{
		db:        db,
		log:       baseLog.With("repo", "SearchRepo"),
		localEPSG: localEPSG,
	}
}

func (r *searchRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

// Execute compiles q, conjoins the shared most_recent and ids filters, and
// returns deduplicated flat records projected onto opts.Fields.
func (r *searchRepo) Execute(dbc dbctx.Context, q query.Query, opts ExecOptions) (*SearchResult, error) {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}

	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		// Alias every column to its bare name so entries carry flat,
		// table-unqualified keys.
		cols = append(cols, fmt.Sprintf("%s.%s AS %s", f.Table, f.Name, f.Name))
	}

	joins, where, args := compileQuery(q)

	conds := make([]string, 0, 3)
	if where != "" {
		conds = append(conds, where)
	}
	if opts.MostRecent {
		conds = append(conds, "published_datasets.most_recent = TRUE")
	}
	if opts.IDs != nil {
		conds = append(conds, "published_datasets.zenodo_record_id IN ?")
		args = append(args, opts.IDs)
	}

	sql := "SELECT DISTINCT " + strings.Join(cols, ", ") + " FROM published_datasets"
	if joins != "" {
		sql += " " + joins
	}
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}

	entries := make([]map[string]any, 0)
	if err := r.conn(dbc).WithContext(dbc.Ctx).Raw(sql, args...).Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("execute dataset query: %w", err)
	}

	return &SearchResult{Count: len(entries), Entries: entries}, nil
}

// ResolveQueryGeometry turns a location name or a WGS84 WKT string into a
// geometry in the local projection. Exactly one of the two must be given.
// All parsing, validation and reprojection is delegated to the spatial
// engine.
func (r *searchRepo) ResolveQueryGeometry(dbc dbctx.Context, location, wkt *string) (query.Geom, error) {
	switch {
	case location != nil && wkt != nil:
		return "", apierr.BadRequest("bad_geometry", "provide a location name or a WKT geometry, not both")
	case location == nil && wkt == nil:
		return "", apierr.BadRequest("bad_geometry", "provide either a location name or a WKT geometry")
	case location != nil:
		return r.gazetteerGeometry(dbc, *location)
	default:
		return r.wktGeometry(dbc, *wkt)
	}
}

func (r *searchRepo) gazetteerGeometry(dbc dbctx.Context, location string) (query.Geom, error) {
	var rows []struct{ WktLocal *string }
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Raw(`SELECT wkt_local FROM gazetteer WHERE location = ?`, location).
		Scan(&rows).Error
	if err != nil {
		return "", fmt.Errorf("gazetteer lookup: %w", err)
	}
	if len(rows) == 0 || rows[0].WktLocal == nil {
		return "", apierr.BadRequest("unknown_location", "unknown location")
	}
	return query.Geom(*rows[0].WktLocal), nil
}

func (r *searchRepo) wktGeometry(dbc dbctx.Context, wkt string) (query.Geom, error) {
	conn := r.conn(dbc).WithContext(dbc.Ctx)

	// Parse, assuming lat/long WGS84 coordinates.
	var parsed string
	if err := conn.Raw(`SELECT ST_GeomFromText(?, 4326)`, wkt).Scan(&parsed).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return "", apierr.BadRequest("bad_wkt", "could not parse WKT geometry")
		}
		return "", fmt.Errorf("parse WKT geometry: %w", err)
	}

	// Do the coordinates look like lat/long?
	var isLatLong bool
	err := conn.Raw(
		`SELECT ST_XMin(g) >= -180 AND ST_XMax(g) <= 180 AND
		        ST_YMin(g) >= -90 AND ST_YMax(g) <= 90
		 FROM (SELECT ?::geometry AS g) AS sel`, parsed,
	).Scan(&isLatLong).Error
	if err != nil {
		return "", fmt.Errorf("check geometry bounds: %w", err)
	}
	if !isLatLong {
		return "", apierr.BadRequest("bad_wkt", "WKT geometry coordinates not as lat/long")
	}

	var local string
	if err := conn.Raw(`SELECT ST_Transform(?::geometry, ?)`, parsed, r.localEPSG).Scan(&local).Error; err != nil {
		return "", fmt.Errorf("reproject query geometry: %w", err)
	}
	return query.Geom(local), nil
}
