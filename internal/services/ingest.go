package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// IngestService registers one published dataset version from the payload
// posted by the Zenodo publication workflow. The whole write is one
// transaction; the search index is only rebuilt after commit.
type IngestService interface {
	Ingest(ctx context.Context, body []byte) (int64, error)
}

type ingestService struct {
	db        *gorm.DB
	datasets  repos.DatasetRepo
	index     IndexService
	localEPSG int
	log       *logger.Logger
}

func NewIngestService(db *gorm.DB, datasets repos.DatasetRepo, index IndexService, localEPSG int, baseLog *logger.Logger) IngestService {
	return &ingestService{
		db:        db,
		datasets:  datasets,
		index:     index,
		localEPSG: localEPSG,
		log:       baseLog.With("service", "IngestService"),
	}
}

func (s *ingestService) Ingest(ctx context.Context, body []byte) (int64, error) {
	doc, err := parseMetadataPayload(body)
	if err != nil {
		return 0, err
	}

	ds := s.buildDataset(doc)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		if err := s.datasets.Insert(dbc, ds); err != nil {
			return err
		}
		if err := s.datasets.DemoteOtherVersions(dbc, ds.ZenodoConceptID, ds.ID); err != nil {
			return err
		}
		if err := s.datasets.SetLocalExtent(dbc, ds.ID, s.localEPSG); err != nil {
			return err
		}
		return s.insertChildren(dbc, ds.ID, doc)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("dataset ingested",
		"dataset_id", ds.ID,
		"zenodo_record_id", ds.ZenodoRecordID,
		"zenodo_concept_id", ds.ZenodoConceptID)

	// The old index stays served if the rebuild fails; the next request
	// will retry lazily.
	if err := s.index.Rebuild(ctx); err != nil {
		s.log.Warn("index rebuild after ingest failed", "error", err)
	}
	return ds.ID, nil
}

func (s *ingestService) buildDataset(doc *ingestDoc) *domain.PublishedDataset {
	md := doc.metadata
	zn := doc.zenodo
	return &domain.PublishedDataset{
		UploadDatetime: time.Now().UTC(),

		DatasetTitle:       md.Title,
		DatasetAccess:      md.Access,
		DatasetEmbargo:     doc.embargo,
		DatasetConditions:  md.AccessConditions,
		DatasetDescription: md.Description,
		DatasetMetadata:    datatypes.JSON(doc.metadataRaw),

		MostRecent:      true,
		PublicationDate: doc.publicationDate,
		ZenodoMetadata:  datatypes.JSON(doc.zenodoRaw),

		ZenodoRecordID:     int64(zn.RecordID),
		ZenodoRecordDOI:    zn.DOIURL,
		ZenodoRecordBadge:  zn.Links.Badge,
		ZenodoConceptID:    int64(zn.ConceptRecID),
		ZenodoConceptDOI:   zn.Links.ConceptDOI,
		ZenodoConceptBadge: zn.Links.ConceptBadge,

		GeographicExtent: extentWKT(
			md.LongitudinalExtent[0], md.LatitudinalExtent[0],
			md.LongitudinalExtent[1], md.LatitudinalExtent[1]),

		TemporalExtentStart: doc.temporalStart,
		TemporalExtentEnd:   doc.temporalEnd,
	}
}

func (s *ingestService) insertChildren(dbc dbctx.Context, datasetID int64, doc *ingestDoc) error {
	md := doc.metadata

	taxa := make([]*domain.DatasetTaxon, 0, len(md.GBIFTaxa)+len(md.NCBITaxa))
	for _, t := range md.GBIFTaxa {
		taxa = append(taxa, newTaxon(datasetID, "GBIF", t))
	}
	for _, t := range md.NCBITaxa {
		taxa = append(taxa, newTaxon(datasetID, "NCBI", t))
	}
	if err := s.datasets.InsertTaxa(dbc, taxa); err != nil {
		return err
	}

	files := make([]*domain.DatasetFile, 0, len(doc.zenodo.Files))
	for _, f := range doc.zenodo.Files {
		files = append(files, &domain.DatasetFile{
			DatasetID:    datasetID,
			Checksum:     strings.TrimPrefix(f.Checksum, "md5:"),
			Filename:     f.Filename,
			Filesize:     f.Filesize,
			FileZenodoID: f.ID,
			DownloadLink: f.Links.Download,
		})
	}
	if err := s.datasets.InsertFiles(dbc, files); err != nil {
		return err
	}

	locs := make([]*domain.DatasetLocation, 0, len(md.Locations))
	for _, l := range md.Locations {
		locs = append(locs, &domain.DatasetLocation{
			DatasetID:   datasetID,
			Name:        l.Name,
			NewLocation: l.NewLocation,
			LocType:     l.LocType,
			WktWgs84:    geomOrNil(l.WktWgs84),
		})
	}
	if err := s.datasets.InsertLocations(dbc, locs); err != nil {
		return err
	}
	if err := s.datasets.ReprojectLocations(dbc, datasetID, s.localEPSG); err != nil {
		return err
	}

	for _, ws := range md.Dataworksheets {
		row := &domain.DatasetWorksheet{
			DatasetID:    datasetID,
			Name:         ws.Name,
			Description:  ws.Description,
			Title:        ws.Title,
			ExternalFile: ws.ExternalFile,
			NDataRow:     ws.NDataRow,
			MaxCol:       ws.MaxCol,
		}
		if err := s.datasets.InsertWorksheet(dbc, row); err != nil {
			return err
		}
		fields := make([]*domain.DatasetField, 0, len(ws.Fields))
		for _, f := range ws.Fields {
			fields = append(fields, &domain.DatasetField{
				DatasetID:        datasetID,
				WorksheetID:      row.ID,
				FieldType:        f.FieldType,
				Description:      f.Description,
				Levels:           f.Levels,
				Units:            f.Units,
				TaxonName:        f.TaxonName,
				TaxonField:       f.TaxonField,
				InteractionField: f.InteractionField,
				InteractionName:  f.InteractionName,
				FieldMethod:      f.FieldMethod,
				FieldName:        f.FieldName,
			})
		}
		if err := s.datasets.InsertFields(dbc, fields); err != nil {
			return err
		}
	}

	authors := make([]*domain.DatasetAuthor, 0, len(md.Authors))
	for _, a := range md.Authors {
		authors = append(authors, &domain.DatasetAuthor{
			DatasetID:   datasetID,
			Affiliation: a.Affiliation,
			Email:       a.Email,
			Name:        a.Name,
			Orcid:       a.Orcid,
		})
	}
	if err := s.datasets.InsertAuthors(dbc, authors); err != nil {
		return err
	}

	funders := make([]*domain.DatasetFunder, 0, len(md.Funders))
	for _, f := range md.Funders {
		funders = append(funders, &domain.DatasetFunder{
			DatasetID:  datasetID,
			Body:       f.Body,
			FunderRef:  f.FunderRef,
			FunderType: f.FunderType,
			URL:        f.URL,
		})
	}
	if err := s.datasets.InsertFunders(dbc, funders); err != nil {
		return err
	}

	permits := make([]*domain.DatasetPermit, 0, len(md.Permits))
	for _, p := range md.Permits {
		permits = append(permits, &domain.DatasetPermit{
			DatasetID:    datasetID,
			Authority:    p.Authority,
			PermitNumber: p.PermitNumber,
			PermitType:   p.PermitType,
		})
	}
	if err := s.datasets.InsertPermits(dbc, permits); err != nil {
		return err
	}

	keywords := make([]*domain.DatasetKeyword, 0, len(md.Keywords))
	for _, k := range md.Keywords {
		keywords = append(keywords, &domain.DatasetKeyword{DatasetID: datasetID, Keyword: k})
	}
	return s.datasets.InsertKeywords(dbc, keywords)
}

func newTaxon(datasetID int64, auth string, t taxonDoc) *domain.DatasetTaxon {
	return &domain.DatasetTaxon{
		DatasetID:     datasetID,
		TaxonAuth:     auth,
		WorksheetName: t.WorksheetName,
		TaxonID:       t.TaxonID,
		ParentID:      t.ParentID,
		TaxonName:     t.TaxonName,
		TaxonRank:     t.TaxonRank,
		TaxonStatus:   t.TaxonStatus,
	}
}

func geomOrNil(wkt *string) *string {
	if wkt == nil || *wkt == "" {
		return nil
	}
	v := "SRID=4326;" + *wkt
	return &v
}

// extentWKT builds the WGS84 bounding polygon for a dataset from its
// reported longitudinal and latitudinal extents, counter-clockwise from
// the south-west corner.
func extentWKT(xmin, ymin, xmax, ymax float64) string {
	c := func(x, y float64) string {
		return strconv.FormatFloat(x, 'g', -1, 64) + " " + strconv.FormatFloat(y, 'g', -1, 64)
	}
	var b strings.Builder
	b.WriteString("SRID=4326;POLYGON((")
	b.WriteString(c(xmin, ymin))
	b.WriteString(", ")
	b.WriteString(c(xmax, ymin))
	b.WriteString(", ")
	b.WriteString(c(xmax, ymax))
	b.WriteString(", ")
	b.WriteString(c(xmin, ymax))
	b.WriteString(", ")
	b.WriteString(c(xmin, ymin))
	b.WriteString("))")
	return b.String()
}
