package repos

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// IndexRow is one flattened (dataset, file) pair of the published index.
// Field order here fixes the serialized form that gets hashed and served.
type IndexRow struct {
	PublicationDate time.Time  `json:"publication_date"`
	ZenodoConceptID int64      `json:"zenodo_concept_id"`
	ZenodoRecordID  int64      `json:"zenodo_record_id"`
	DatasetAccess   string     `json:"dataset_access"`
	DatasetEmbargo  *time.Time `json:"dataset_embargo"`
	DatasetTitle    string     `json:"dataset_title"`
	MostRecent      bool       `json:"most_recent"`
	Checksum        string     `json:"checksum"`
	Filename        string     `json:"filename"`
	Filesize        int64      `json:"filesize"`
}

// TaxonUsage is one distinct taxon with the number of rows recording it.
type TaxonUsage struct {
	TaxonAuth   string `json:"taxon_auth"`
	TaxonID     *int64 `json:"taxon_id"`
	TaxonRank   string `json:"taxon_rank"`
	TaxonName   string `json:"taxon_name"`
	TaxonStatus string `json:"taxon_status"`
	ParentID    *int64 `json:"parent_id"`
	NDatasets   int64  `json:"n_datasets"`
}

// DatasetRepo owns every write and direct read of the dataset tables. The
// ingest service drives the insert methods inside one transaction via dbc.
type DatasetRepo interface {
	Insert(dbc dbctx.Context, ds *domain.PublishedDataset) error
	// DemoteOtherVersions clears most_recent on every other version of the
	// same concept, keeping the invariant of one current row per concept.
	DemoteOtherVersions(dbc dbctx.Context, conceptID, keepID int64) error
	SetLocalExtent(dbc dbctx.Context, datasetID int64, epsg int) error

	InsertTaxa(dbc dbctx.Context, rows []*domain.DatasetTaxon) error
	InsertFiles(dbc dbctx.Context, rows []*domain.DatasetFile) error
	InsertLocations(dbc dbctx.Context, rows []*domain.DatasetLocation) error
	ReprojectLocations(dbc dbctx.Context, datasetID int64, epsg int) error
	InsertWorksheet(dbc dbctx.Context, row *domain.DatasetWorksheet) error
	InsertFields(dbc dbctx.Context, rows []*domain.DatasetField) error
	InsertAuthors(dbc dbctx.Context, rows []*domain.DatasetAuthor) error
	InsertFunders(dbc dbctx.Context, rows []*domain.DatasetFunder) error
	InsertPermits(dbc dbctx.Context, rows []*domain.DatasetPermit) error
	InsertKeywords(dbc dbctx.Context, rows []*domain.DatasetKeyword) error

	GetByRecordID(dbc dbctx.Context, recordID int64) (*domain.PublishedDataset, error)
	IndexRows(dbc dbctx.Context) ([]IndexRow, error)
	TaxonUsageCounts(dbc dbctx.Context) ([]TaxonUsage, error)
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return &datasetRepo{db: db, log: baseLog.With("repo", "DatasetRepo")}
}

func (r *datasetRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *datasetRepo) Insert(dbc dbctx.Context, ds *domain.PublishedDataset) error {
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(ds).Error; err != nil {
		return fmt.Errorf("insert published dataset: %w", err)
	}
	return nil
}

func (r *datasetRepo) DemoteOtherVersions(dbc dbctx.Context, conceptID, keepID int64) error {
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&domain.PublishedDataset{}).
		Where("zenodo_concept_id = ? AND id <> ?", conceptID, keepID).
		Update("most_recent", false).Error
	if err != nil {
		return fmt.Errorf("demote previous versions: %w", err)
	}
	return nil
}

func (r *datasetRepo) SetLocalExtent(dbc dbctx.Context, datasetID int64, epsg int) error {
	err := r.conn(dbc).WithContext(dbc.Ctx).Exec(
		`UPDATE published_datasets
		 SET geographic_extent_local = ST_Transform(geographic_extent, ?)
		 WHERE id = ?`, epsg, datasetID,
	).Error
	if err != nil {
		return fmt.Errorf("reproject geographic extent: %w", err)
	}
	return nil
}

func (r *datasetRepo) InsertTaxa(dbc dbctx.Context, rows []*domain.DatasetTaxon) error {
	return r.bulkInsert(dbc, "dataset taxa", &rows, len(rows))
}

func (r *datasetRepo) InsertFiles(dbc dbctx.Context, rows []*domain.DatasetFile) error {
	return r.bulkInsert(dbc, "dataset files", &rows, len(rows))
}

func (r *datasetRepo) InsertLocations(dbc dbctx.Context, rows []*domain.DatasetLocation) error {
	return r.bulkInsert(dbc, "dataset locations", &rows, len(rows))
}

func (r *datasetRepo) ReprojectLocations(dbc dbctx.Context, datasetID int64, epsg int) error {
	err := r.conn(dbc).WithContext(dbc.Ctx).Exec(
		`UPDATE dataset_locations
		 SET wkt_local = ST_Transform(wkt_wgs84, ?)
		 WHERE dataset_id = ? AND wkt_wgs84 IS NOT NULL`, epsg, datasetID,
	).Error
	if err != nil {
		return fmt.Errorf("reproject dataset locations: %w", err)
	}
	return nil
}

func (r *datasetRepo) InsertWorksheet(dbc dbctx.Context, row *domain.DatasetWorksheet) error {
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert dataset worksheet: %w", err)
	}
	return nil
}

func (r *datasetRepo) InsertFields(dbc dbctx.Context, rows []*domain.DatasetField) error {
	return r.bulkInsert(dbc, "dataset fields", &rows, len(rows))
}

func (r *datasetRepo) InsertAuthors(dbc dbctx.Context, rows []*domain.DatasetAuthor) error {
	return r.bulkInsert(dbc, "dataset authors", &rows, len(rows))
}

func (r *datasetRepo) InsertFunders(dbc dbctx.Context, rows []*domain.DatasetFunder) error {
	return r.bulkInsert(dbc, "dataset funders", &rows, len(rows))
}

func (r *datasetRepo) InsertPermits(dbc dbctx.Context, rows []*domain.DatasetPermit) error {
	return r.bulkInsert(dbc, "dataset permits", &rows, len(rows))
}

func (r *datasetRepo) InsertKeywords(dbc dbctx.Context, rows []*domain.DatasetKeyword) error {
	return r.bulkInsert(dbc, "dataset keywords", &rows, len(rows))
}

func (r *datasetRepo) bulkInsert(dbc dbctx.Context, what string, rows any, n int) error {
	if n == 0 {
		return nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	return nil
}

func (r *datasetRepo) GetByRecordID(dbc dbctx.Context, recordID int64) (*domain.PublishedDataset, error) {
	var ds domain.PublishedDataset
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("zenodo_record_id = ?", recordID).
		First(&ds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("unknown_record", "unknown record number")
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset record: %w", err)
	}
	return &ds, nil
}

// IndexRows returns the full (dataset x file) index in insertion order.
func (r *datasetRepo) IndexRows(dbc dbctx.Context) ([]IndexRow, error) {
	rows := make([]IndexRow, 0)
	err := r.conn(dbc).WithContext(dbc.Ctx).Raw(
		`SELECT published_datasets.publication_date,
		        published_datasets.zenodo_concept_id,
		        published_datasets.zenodo_record_id,
		        published_datasets.dataset_access,
		        published_datasets.dataset_embargo,
		        published_datasets.dataset_title,
		        published_datasets.most_recent,
		        dataset_files.checksum,
		        dataset_files.filename,
		        dataset_files.filesize
		 FROM published_datasets
		 JOIN dataset_files ON dataset_files.dataset_id = published_datasets.id
		 ORDER BY published_datasets.id, dataset_files.id`,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load index rows: %w", err)
	}
	return rows, nil
}

func (r *datasetRepo) TaxonUsageCounts(dbc dbctx.Context) ([]TaxonUsage, error) {
	rows := make([]TaxonUsage, 0)
	err := r.conn(dbc).WithContext(dbc.Ctx).Raw(
		`SELECT taxon_auth, taxon_id, taxon_rank, taxon_name, taxon_status,
		        parent_id, COUNT(*) AS n_datasets
		 FROM dataset_taxa
		 GROUP BY taxon_auth, taxon_id, taxon_rank, taxon_name, taxon_status, parent_id
		 ORDER BY taxon_name`,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load taxon usage: %w", err)
	}
	return rows, nil
}
