package domain

import (
	"github.com/google/uuid"
)

// The tables below hold the searchable per-version index of a published
// dataset. Every row belongs to exactly one PublishedDataset and is written
// in the same transaction as its parent.

type DatasetFile struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Checksum     string    `gorm:"column:checksum;size:32" json:"checksum"`
	Filename     string    `gorm:"column:filename" json:"filename"`
	Filesize     int64     `gorm:"column:filesize" json:"filesize"`
	FileZenodoID uuid.UUID `gorm:"column:file_zenodo_id;type:uuid" json:"file_zenodo_id"`
	DownloadLink string    `gorm:"column:download_link" json:"download_link"`
}

func (DatasetFile) TableName() string { return "dataset_files" }

type DatasetTaxon struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	// TaxonAuth records the source authority, "GBIF" or "NCBI".
	TaxonAuth     string `gorm:"column:taxon_auth" json:"taxon_auth"`
	WorksheetName string `gorm:"column:worksheet_name" json:"worksheet_name"`
	TaxonID       *int64 `gorm:"column:taxon_id;index" json:"taxon_id"`
	ParentID      *int64 `gorm:"column:parent_id" json:"parent_id"`
	TaxonName     string `gorm:"column:taxon_name;index" json:"taxon_name"`
	TaxonRank     string `gorm:"column:taxon_rank" json:"taxon_rank"`
	TaxonStatus   string `gorm:"column:taxon_status" json:"taxon_status"`
}

func (DatasetTaxon) TableName() string { return "dataset_taxa" }

type DatasetLocation struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Name        string `gorm:"column:name;index" json:"name"`
	NewLocation bool   `gorm:"column:new_location" json:"new_location"`
	LocType     string `gorm:"column:loc_type" json:"loc_type"`

	// WktWgs84 may be null for new locations reported without coordinates;
	// WktLocal is derived with ST_Transform after insert.
	WktWgs84 *string `gorm:"column:wkt_wgs84;type:geometry(Geometry,4326)" json:"-"`
	WktLocal *string `gorm:"column:wkt_local;type:geometry" json:"-"`
}

func (DatasetLocation) TableName() string { return "dataset_locations" }

type DatasetWorksheet struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Name         string `gorm:"column:name" json:"name"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	Title        string `gorm:"column:title" json:"title"`
	ExternalFile string `gorm:"column:external_file" json:"external_file"`
	NDataRow     int    `gorm:"column:n_data_row" json:"n_data_row"`
	MaxCol       int    `gorm:"column:max_col" json:"max_col"`
}

func (DatasetWorksheet) TableName() string { return "dataset_worksheets" }

type DatasetField struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID   int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset     *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`
	WorksheetID int64             `gorm:"column:worksheet_id;index;not null" json:"worksheet_id"`
	Worksheet   *DatasetWorksheet `gorm:"constraint:OnDelete:CASCADE;foreignKey:WorksheetID;references:ID" json:"-"`

	FieldType        string `gorm:"column:field_type" json:"field_type"`
	Description      string `gorm:"column:description;type:text" json:"description"`
	Levels           string `gorm:"column:levels;type:text" json:"levels"`
	Units            string `gorm:"column:units" json:"units"`
	TaxonName        string `gorm:"column:taxon_name" json:"taxon_name"`
	TaxonField       string `gorm:"column:taxon_field" json:"taxon_field"`
	InteractionField string `gorm:"column:interaction_field" json:"interaction_field"`
	InteractionName  string `gorm:"column:interaction_name" json:"interaction_name"`
	FieldMethod      string `gorm:"column:field_method;type:text" json:"field_method"`
	FieldName        string `gorm:"column:field_name;index" json:"field_name"`
}

func (DatasetField) TableName() string { return "dataset_fields" }

type DatasetAuthor struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Affiliation string `gorm:"column:affiliation" json:"affiliation"`
	Email       string `gorm:"column:email" json:"email"`
	Name        string `gorm:"column:name;index" json:"name"`
	Orcid       string `gorm:"column:orcid" json:"orcid"`
}

func (DatasetAuthor) TableName() string { return "dataset_authors" }

type DatasetFunder struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Body       string `gorm:"column:body" json:"body"`
	FunderRef  string `gorm:"column:funder_ref" json:"funder_ref"`
	FunderType string `gorm:"column:funder_type" json:"funder_type"`
	URL        string `gorm:"column:url" json:"url"`
}

func (DatasetFunder) TableName() string { return "dataset_funders" }

type DatasetPermit struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Authority    string `gorm:"column:authority" json:"authority"`
	PermitNumber string `gorm:"column:permit_number" json:"permit_number"`
	PermitType   string `gorm:"column:permit_type" json:"permit_type"`
}

func (DatasetPermit) TableName() string { return "dataset_permits" }

type DatasetKeyword struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID int64             `gorm:"column:dataset_id;index;not null" json:"dataset_id"`
	Dataset   *PublishedDataset `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"-"`

	Keyword string `gorm:"column:keyword;index" json:"keyword"`
}

func (DatasetKeyword) TableName() string { return "dataset_keywords" }
