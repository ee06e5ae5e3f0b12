package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// GazetteerService replaces the gazetteer and alias tables wholesale from
// an uploaded payload and keeps the on-disk snapshots in sync. Both table
// replacements run in a single transaction and snapshots are only written
// after it commits, so a failed upload never leaves a half-replaced table
// or a snapshot that disagrees with the database.
type GazetteerService interface {
	Replace(ctx context.Context, body []byte) error
	// SnapshotPath returns the on-disk path of a snapshot file, or an
	// error if no gazetteer has been loaded yet.
	SnapshotPath(name string) (string, error)
}

type gazetteerService struct {
	db        *gorm.DB
	gaz       repos.GazetteerRepo
	index     IndexService
	staticDir string
	localEPSG int
	log       *logger.Logger
}

func NewGazetteerService(db *gorm.DB, gaz repos.GazetteerRepo, index IndexService, staticDir string, localEPSG int, baseLog *logger.Logger) GazetteerService {
	return &gazetteerService{
		db:        db,
		gaz:       gaz,
		index:     index,
		staticDir: staticDir,
		localEPSG: localEPSG,
		log:       baseLog.With("service", "GazetteerService"),
	}
}

// gazetteerPayload is the body of POST /api/gazetteer: a GeoJSON feature
// collection of canonical locations plus the alias table as CSV text.
type gazetteerPayload struct {
	Gazetteer json.RawMessage `json:"gazetteer"`
	Aliases   string          `json:"location_aliases"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties featureProps    `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type featureProps struct {
	Location     string   `json:"location"`
	Type         string   `json:"type"`
	CentroidX    *float64 `json:"centroid_x"`
	CentroidY    *float64 `json:"centroid_y"`
	BboxXmin     *float64 `json:"bbox_xmin"`
	BboxXmax     *float64 `json:"bbox_xmax"`
	BboxYmin     *float64 `json:"bbox_ymin"`
	BboxYmax     *float64 `json:"bbox_ymax"`
}

func (s *gazetteerService) Replace(ctx context.Context, body []byte) error {
	var payload gazetteerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return apierr.BadRequest("bad_payload", "malformed JSON payload")
	}
	if len(payload.Gazetteer) == 0 || payload.Aliases == "" {
		return apierr.BadRequest("bad_payload", "payload must provide gazetteer and location_aliases")
	}

	rows, err := parseGazetteer(payload.Gazetteer)
	if err != nil {
		return err
	}
	aliases, err := parseAliases(payload.Aliases)
	if err != nil {
		return err
	}

	// Both tables replace inside one transaction: a failure anywhere,
	// including alias validation, restores the previous gazetteer too.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		if err := s.replaceLocations(dbc, rows); err != nil {
			return apierr.New(400, "gazetteer_load_failed", &GazetteerLoadError{Cause: err})
		}
		if err := s.replaceAliases(dbc, aliases); err != nil {
			return apierr.New(400, "alias_load_failed", &LocationAliasLoadError{Cause: err})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.writeSnapshots(payload); err != nil {
		return err
	}

	s.log.Info("gazetteer replaced", "locations", len(rows), "aliases", len(aliases))

	if err := s.index.Rebuild(ctx); err != nil {
		s.log.Warn("index rebuild after gazetteer load failed", "error", err)
	}
	return nil
}

func (s *gazetteerService) replaceLocations(dbc dbctx.Context, rows []repos.GazetteerRow) error {
	if err := s.gaz.TruncateLocations(dbc); err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.gaz.InsertLocation(dbc, row); err != nil {
			return err
		}
	}
	return s.gaz.ReprojectLocations(dbc, s.localEPSG)
}

func (s *gazetteerService) replaceAliases(dbc dbctx.Context, aliases []*domain.GazetteerAlias) error {
	if err := s.gaz.TruncateAliases(dbc); err != nil {
		return err
	}
	for _, a := range aliases {
		ok, err := s.gaz.LocationExists(dbc, a.Location)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("alias %q points at unknown location %q", a.Alias, a.Location)
		}
		canonical, err := s.gaz.LocationExists(dbc, a.Alias)
		if err != nil {
			return err
		}
		if canonical {
			return fmt.Errorf("alias %q is itself a canonical location", a.Alias)
		}
		if err := s.gaz.InsertAlias(dbc, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *gazetteerService) SnapshotPath(name string) (string, error) {
	path := filepath.Join(s.staticDir, "gis", name)
	if _, err := os.Stat(path); err != nil {
		return "", apierr.BadRequest("not_loaded", "no gazetteer data has been loaded")
	}
	return path, nil
}

// writeSnapshots persists the exact uploaded documents so clients can sync
// verbatim copies whose hashes match /api/index/hashes.
func (s *gazetteerService) writeSnapshots(payload gazetteerPayload) error {
	dir := filepath.Join(s.staticDir, "gis")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, GazetteerFile), payload.Gazetteer, 0o644); err != nil {
		return fmt.Errorf("write gazetteer snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, AliasesFile), []byte(payload.Aliases), 0o644); err != nil {
		return fmt.Errorf("write alias snapshot: %w", err)
	}
	return nil
}

func parseGazetteer(raw json.RawMessage) ([]repos.GazetteerRow, error) {
	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, apierr.BadRequest("bad_payload", "malformed gazetteer document: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, apierr.BadRequest("bad_payload", "gazetteer document is not a FeatureCollection")
	}
	rows := make([]repos.GazetteerRow, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Properties.Location == "" {
			return nil, apierr.BadRequest("bad_payload", "gazetteer feature %d has no location name", i)
		}
		if len(f.Geometry) == 0 {
			return nil, apierr.BadRequest("bad_payload", "gazetteer feature %q has no geometry", f.Properties.Location)
		}
		rows = append(rows, repos.GazetteerRow{
			Location:     f.Properties.Location,
			LocationType: f.Properties.Type,
			CentroidX:    f.Properties.CentroidX,
			CentroidY:    f.Properties.CentroidY,
			BboxXmin:     f.Properties.BboxXmin,
			BboxXmax:     f.Properties.BboxXmax,
			BboxYmin:     f.Properties.BboxYmin,
			BboxYmax:     f.Properties.BboxYmax,
			GeometryJSON: string(f.Geometry),
		})
	}
	return rows, nil
}

// parseAliases reads the alias CSV. The zenodo_record_id column scopes an
// alias to one dataset version; the literal NA marks a global alias.
func parseAliases(text string) ([]*domain.GazetteerAlias, error) {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil {
		return nil, apierr.BadRequest("bad_payload", "malformed alias CSV: %v", err)
	}
	if len(records) == 0 {
		return nil, apierr.BadRequest("bad_payload", "alias CSV has no header row")
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"zenodo_record_id", "location", "alias"} {
		if _, ok := col[required]; !ok {
			return nil, apierr.BadRequest("bad_payload", "alias CSV missing column %q", required)
		}
	}

	aliases := make([]*domain.GazetteerAlias, 0, len(records)-1)
	for n, rec := range records[1:] {
		alias := &domain.GazetteerAlias{
			Location: strings.TrimSpace(rec[col["location"]]),
			Alias:    strings.TrimSpace(rec[col["alias"]]),
		}
		if alias.Location == "" || alias.Alias == "" {
			return nil, apierr.BadRequest("bad_payload", "alias CSV row %d missing location or alias", n+2)
		}
		scope := strings.TrimSpace(rec[col["zenodo_record_id"]])
		if scope != "" && scope != "NA" {
			id, err := strconv.ParseInt(scope, 10, 64)
			if err != nil {
				return nil, apierr.BadRequest("bad_payload", "alias CSV row %d has bad record id %q", n+2, scope)
			}
			alias.ZenodoRecordID = &id
		}
		aliases = append(aliases, alias)
	}
	return aliases, nil
}
