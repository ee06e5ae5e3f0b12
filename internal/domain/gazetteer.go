package domain

// GazetteerLocation is a canonical named sampling site. The table is only
// ever replaced wholesale from an uploaded feature collection, never
// patched row by row.
type GazetteerLocation struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Location     string   `gorm:"column:location;uniqueIndex;not null" json:"location"`
	LocationType string   `gorm:"column:location_type" json:"location_type"`
	CentroidX    *float64 `gorm:"column:centroid_x" json:"centroid_x"`
	CentroidY    *float64 `gorm:"column:centroid_y" json:"centroid_y"`
	BboxXmin     *float64 `gorm:"column:bbox_xmin" json:"bbox_xmin"`
	BboxXmax     *float64 `gorm:"column:bbox_xmax" json:"bbox_xmax"`
	BboxYmin     *float64 `gorm:"column:bbox_ymin" json:"bbox_ymin"`
	BboxYmax     *float64 `gorm:"column:bbox_ymax" json:"bbox_ymax"`

	WktWgs84 string  `gorm:"column:wkt_wgs84;type:geometry(Geometry,4326)" json:"-"`
	WktLocal *string `gorm:"column:wkt_local;type:geometry" json:"-"`
}

func (GazetteerLocation) TableName() string { return "gazetteer" }

// GazetteerAlias maps an alternate name onto a canonical gazetteer
// location. A nil ZenodoRecordID makes the alias global; otherwise it only
// applies within that dataset version. The alias value must not itself be a
// canonical location name, and (zenodo_record_id, alias) is unique.
type GazetteerAlias struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ZenodoRecordID *int64 `gorm:"column:zenodo_record_id" json:"zenodo_record_id"`
	Location       string `gorm:"column:location;not null" json:"location"`
	Alias          string `gorm:"column:alias;not null" json:"alias"`
}

func (GazetteerAlias) TableName() string { return "gazetteer_alias" }
