package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/query"
)

// fileFields is the projection served by /api/files: the default columns
// plus everything a client needs to fetch the file from Zenodo.
var fileFields = append(append([]repos.FieldRef{}, repos.DefaultFields...),
	repos.FieldRef{Table: query.Files, Name: "checksum"},
	repos.FieldRef{Table: query.Files, Name: "filename"},
	repos.FieldRef{Table: query.Files, Name: "filesize"},
	repos.FieldRef{Table: query.Files, Name: "download_link"},
)

// CatalogService serves the read-only record, file and taxon views of the
// published datasets.
type CatalogService interface {
	// Record returns the stored metadata document of one dataset version,
	// annotated with its publication identifiers.
	Record(ctx context.Context, recordID int64) (map[string]any, error)
	Files(ctx context.Context, opts repos.ExecOptions) (*repos.SearchResult, error)
	TaxonUsage(ctx context.Context) ([]repos.TaxonUsage, error)
}

type catalogService struct {
	datasets repos.DatasetRepo
	search   repos.SearchRepo
	log      *logger.Logger
}

func NewCatalogService(datasets repos.DatasetRepo, search repos.SearchRepo, baseLog *logger.Logger) CatalogService {
	return &catalogService{
		datasets: datasets,
		search:   search,
		log:      baseLog.With("service", "CatalogService"),
	}
}

func (s *catalogService) Record(ctx context.Context, recordID int64) (map[string]any, error) {
	ds, err := s.datasets.GetByRecordID(dbctx.New(ctx), recordID)
	if err != nil {
		return nil, err
	}

	record := map[string]any{}
	if err := json.Unmarshal(ds.DatasetMetadata, &record); err != nil {
		return nil, fmt.Errorf("decode stored metadata for record %d: %w", recordID, err)
	}
	record["publication_date"] = ds.PublicationDate
	record["zenodo_record_id"] = ds.ZenodoRecordID
	record["zenodo_concept_id"] = ds.ZenodoConceptID
	return record, nil
}

func (s *catalogService) Files(ctx context.Context, opts repos.ExecOptions) (*repos.SearchResult, error) {
	opts.Fields = fileFields
	q := query.Query{Joins: []query.Table{query.Files}}
	return s.search.Execute(dbctx.New(ctx), q, opts)
}

func (s *catalogService) TaxonUsage(ctx context.Context) ([]repos.TaxonUsage, error) {
	return s.datasets.TaxonUsageCounts(dbctx.New(ctx))
}
