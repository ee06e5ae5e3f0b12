package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safedata/safedata-server/internal/platform/apierr"
)

// flexInt64 decodes a JSON value that Zenodo serves sometimes as a number
// and sometimes as a quoted string of digits (conceptrecid in particular).
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", s)
	}
	*f = flexInt64(v)
	return nil
}

// metadataPayload is the body of POST /api/metadata: the validated dataset
// metadata document plus the Zenodo deposit record. Both raw documents are
// kept verbatim for the JSONB columns.
type metadataPayload struct {
	Metadata json.RawMessage `json:"metadata"`
	Zenodo   json.RawMessage `json:"zenodo"`
}

type datasetMetadata struct {
	Title              string         `json:"title"`
	Access             string         `json:"access"`
	EmbargoDate        *string        `json:"embargo_date"`
	AccessConditions   *string        `json:"access_conditions"`
	Description        string         `json:"description"`
	TemporalExtent     []string       `json:"temporal_extent"`
	LatitudinalExtent  []float64      `json:"latitudinal_extent"`
	LongitudinalExtent []float64      `json:"longitudinal_extent"`
	GBIFTaxa           []taxonDoc     `json:"gbif_taxa"`
	NCBITaxa           []taxonDoc     `json:"ncbi_taxa"`
	Locations          []locationDoc  `json:"locations"`
	Dataworksheets     []worksheetDoc `json:"dataworksheets"`
	Authors            []authorDoc    `json:"authors"`
	Funders            []funderDoc    `json:"funders"`
	Permits            []permitDoc    `json:"permits"`
	Keywords           []string       `json:"keywords"`
}

type taxonDoc struct {
	WorksheetName string `json:"worksheet_name"`
	TaxonID       *int64 `json:"taxon_id"`
	ParentID      *int64 `json:"parent_id"`
	TaxonName     string `json:"taxon_name"`
	TaxonRank     string `json:"taxon_rank"`
	TaxonStatus   string `json:"taxon_status"`
}

type locationDoc struct {
	Name        string  `json:"name"`
	NewLocation bool    `json:"new_location"`
	LocType     string  `json:"loc_type"`
	WktWgs84    *string `json:"wkt_wgs84"`
}

type worksheetDoc struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Title        string     `json:"title"`
	ExternalFile string     `json:"external_file"`
	NDataRow     int        `json:"n_data_row"`
	MaxCol       int        `json:"max_col"`
	Fields       []fieldDoc `json:"fields"`
}

type fieldDoc struct {
	FieldType        string `json:"field_type"`
	Description      string `json:"description"`
	Levels           string `json:"levels"`
	Units            string `json:"units"`
	TaxonName        string `json:"taxon_name"`
	TaxonField       string `json:"taxon_field"`
	InteractionField string `json:"interaction_field"`
	InteractionName  string `json:"interaction_name"`
	FieldMethod      string `json:"field_method"`
	FieldName        string `json:"field_name"`
}

type authorDoc struct {
	Affiliation string `json:"affiliation"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Orcid       string `json:"orcid"`
}

type funderDoc struct {
	Body       string `json:"body"`
	FunderRef  string `json:"funder_ref"`
	FunderType string `json:"funder_type"`
	URL        string `json:"url"`
}

type permitDoc struct {
	Authority    string `json:"authority"`
	PermitNumber string `json:"permit_number"`
	PermitType   string `json:"permit_type"`
}

type zenodoDeposit struct {
	RecordID     flexInt64   `json:"record_id"`
	DOIURL       string      `json:"doi_url"`
	ConceptRecID flexInt64   `json:"conceptrecid"`
	Links        zenodoLinks `json:"links"`
	Metadata     struct {
		PublicationDate string `json:"publication_date"`
	} `json:"metadata"`
	Files []zenodoFile `json:"files"`
}

type zenodoLinks struct {
	Badge        string `json:"badge"`
	ConceptDOI   string `json:"conceptdoi"`
	ConceptBadge string `json:"conceptbadge"`
}

type zenodoFile struct {
	ID       uuid.UUID `json:"id"`
	Checksum string    `json:"checksum"`
	Filename string    `json:"filename"`
	Filesize int64     `json:"filesize"`
	Links    struct {
		Download string `json:"download"`
	} `json:"links"`
}

// ingestDoc is a fully parsed and validated metadata payload.
type ingestDoc struct {
	metadata    datasetMetadata
	zenodo      zenodoDeposit
	metadataRaw json.RawMessage
	zenodoRaw   json.RawMessage

	temporalStart   time.Time
	temporalEnd     time.Time
	embargo         *time.Time
	publicationDate time.Time
}

const isoDate = "2006-01-02"

func parseMetadataPayload(body []byte) (*ingestDoc, error) {
	var payload metadataPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apierr.BadRequest("bad_payload", "malformed JSON payload")
	}
	if len(payload.Metadata) == 0 || len(payload.Zenodo) == 0 {
		return nil, apierr.BadRequest("bad_payload", "payload must provide metadata and zenodo documents")
	}

	doc := &ingestDoc{metadataRaw: payload.Metadata, zenodoRaw: payload.Zenodo}
	if err := json.Unmarshal(payload.Metadata, &doc.metadata); err != nil {
		return nil, apierr.BadRequest("bad_payload", "malformed dataset metadata: %v", err)
	}
	if err := json.Unmarshal(payload.Zenodo, &doc.zenodo); err != nil {
		return nil, apierr.BadRequest("bad_payload", "malformed zenodo metadata: %v", err)
	}

	md := doc.metadata
	if md.Title == "" {
		return nil, apierr.BadRequest("bad_payload", "dataset metadata missing title")
	}
	switch md.Access {
	case "open", "embargo", "restricted":
	default:
		return nil, apierr.BadRequest("bad_payload", "unknown dataset access level: %s", md.Access)
	}
	if len(md.TemporalExtent) != 2 {
		return nil, apierr.BadRequest("bad_payload", "temporal_extent must hold two dates")
	}
	if len(md.LatitudinalExtent) != 2 || len(md.LongitudinalExtent) != 2 {
		return nil, apierr.BadRequest("bad_payload", "latitudinal and longitudinal extents must hold two values")
	}

	var err error
	doc.temporalStart, err = time.Parse(isoDate, md.TemporalExtent[0])
	if err == nil {
		doc.temporalEnd, err = time.Parse(isoDate, md.TemporalExtent[1])
	}
	if err != nil {
		return nil, apierr.BadRequest("bad_payload", "could not parse temporal extent: %v", err)
	}
	if doc.temporalEnd.Before(doc.temporalStart) {
		return nil, apierr.BadRequest("bad_payload", "temporal extent end precedes start")
	}

	if md.EmbargoDate != nil && *md.EmbargoDate != "" {
		d, err := time.Parse(isoDate, *md.EmbargoDate)
		if err != nil {
			return nil, apierr.BadRequest("bad_payload", "could not parse embargo date: %v", err)
		}
		doc.embargo = &d
	}

	if doc.zenodo.RecordID == 0 || doc.zenodo.ConceptRecID == 0 {
		return nil, apierr.BadRequest("bad_payload", "zenodo metadata missing record or concept id")
	}

	doc.publicationDate, err = parseFlexibleDate(doc.zenodo.Metadata.PublicationDate)
	if err != nil {
		return nil, apierr.BadRequest("bad_payload", "could not parse publication date: %v", err)
	}

	return doc, nil
}

// parseFlexibleDate accepts either a bare ISO date or a full timestamp,
// which is how Zenodo reports publication dates across API versions.
func parseFlexibleDate(s string) (time.Time, error) {
	if t, err := time.Parse(isoDate, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
