package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Dataset access levels.
const (
	AccessOpen       = "open"
	AccessEmbargo    = "embargo"
	AccessRestricted = "restricted"
)

// PublishedDataset is one immutable published version of a dataset concept.
// The Zenodo record id identifies the version, the concept id is stable
// across versions, and exactly one row per concept carries MostRecent=true.
type PublishedDataset struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadDatetime time.Time `gorm:"column:upload_datetime" json:"upload_datetime"`

	DatasetTitle       string         `gorm:"column:dataset_title;type:text" json:"dataset_title"`
	DatasetAccess      string         `gorm:"column:dataset_access" json:"dataset_access"`
	DatasetEmbargo     *time.Time     `gorm:"column:dataset_embargo;type:date" json:"dataset_embargo"`
	DatasetConditions  *string        `gorm:"column:dataset_conditions;type:text" json:"dataset_conditions"`
	DatasetDescription string         `gorm:"column:dataset_description;type:text" json:"dataset_description"`
	DatasetMetadata    datatypes.JSON `gorm:"column:dataset_metadata;type:jsonb" json:"dataset_metadata"`

	MostRecent      bool           `gorm:"column:most_recent;index" json:"most_recent"`
	PublicationDate time.Time      `gorm:"column:publication_date" json:"publication_date"`
	ZenodoMetadata  datatypes.JSON `gorm:"column:zenodo_metadata;type:jsonb" json:"zenodo_metadata"`

	ZenodoRecordID     int64  `gorm:"column:zenodo_record_id;uniqueIndex" json:"zenodo_record_id"`
	ZenodoRecordDOI    string `gorm:"column:zenodo_record_doi" json:"zenodo_record_doi"`
	ZenodoRecordBadge  string `gorm:"column:zenodo_record_badge" json:"zenodo_record_badge"`
	ZenodoConceptID    int64  `gorm:"column:zenodo_concept_id;index" json:"zenodo_concept_id"`
	ZenodoConceptDOI   string `gorm:"column:zenodo_concept_doi" json:"zenodo_concept_doi"`
	ZenodoConceptBadge string `gorm:"column:zenodo_concept_badge" json:"zenodo_concept_badge"`

	// GeographicExtent is the WGS84 bounding polygon; the local column is
	// derived from it with ST_Transform and only ever written by SQL.
	GeographicExtent      string  `gorm:"column:geographic_extent;type:geometry(Geometry,4326)" json:"-"`
	GeographicExtentLocal *string `gorm:"column:geographic_extent_local;type:geometry" json:"-"`

	TemporalExtentStart time.Time `gorm:"column:temporal_extent_start;type:date" json:"temporal_extent_start"`
	TemporalExtentEnd   time.Time `gorm:"column:temporal_extent_end;type:date" json:"temporal_extent_end"`
}

func (PublishedDataset) TableName() string { return "published_datasets" }
