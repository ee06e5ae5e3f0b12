// Package query builds declarative filter predicates over the dataset
// catalog. A Query is data, not an executed statement: it names the tables
// that must be joined to published_datasets and a boolean expression over
// their columns. The storage layer compiles it to SQL; nothing in this
// package touches the database.
package query

// Table names the relations a predicate may reference.
type Table string

const (
	Datasets   Table = "published_datasets"
	Taxa       Table = "dataset_taxa"
	Authors    Table = "dataset_authors"
	Locations  Table = "dataset_locations"
	Worksheets Table = "dataset_worksheets"
	Fields     Table = "dataset_fields"
	Keywords   Table = "dataset_keywords"
	Files      Table = "dataset_files"
	Gazetteer  Table = "gazetteer"
)

// Col is a qualified column reference.
type Col struct {
	Table Table
	Name  string
}

// Op is a comparison operator for Cmp leaves.
type Op string

const (
	OpEq Op = "="
	OpGe Op = ">="
	OpLe Op = "<="
)

// Geom is an opaque geometry value in the local projected coordinate
// system, produced by the geometry resolver. The compiler passes it to the
// spatial engine as a bind parameter; builders never look inside it.
type Geom string

// SpatialRel names a polygon relation for extent matching.
type SpatialRel string

const (
	RelIntersects SpatialRel = "intersects"
	RelContains   SpatialRel = "contains"
	RelWithin     SpatialRel = "within"
)

// Pred is a node in the predicate expression tree.
type Pred interface{ pred() }

// Cmp compares a column against a literal value.
type Cmp struct {
	Col   Col
	Op    Op
	Value any
}

// Contains matches when Needle appears as a case-insensitive substring of
// the column value.
type Contains struct {
	Col    Col
	Needle string
}

// EqFold matches on case-insensitive equality.
type EqFold struct {
	Col   Col
	Value string
}

// DistanceWithin matches when the column geometry lies within Distance
// (projected units) of Geom.
type DistanceWithin struct {
	Col      Col
	Geom     Geom
	Distance float64
}

// Relates matches the column geometry against Geom with a polygon relation.
type Relates struct {
	Col  Col
	Rel  SpatialRel
	Geom Geom
}

type And struct{ Preds []Pred }

type Or struct{ Preds []Pred }

type Not struct{ Pred Pred }

func (Cmp) pred()            {}
func (Contains) pred()       {}
func (EqFold) pred()         {}
func (DistanceWithin) pred() {}
func (Relates) pred()        {}
func (And) pred()            {}
func (Or) pred()             {}
func (Not) pred()            {}

// AllOf conjoins preds, flattening the degenerate cases.
func AllOf(preds ...Pred) Pred {
	if len(preds) == 1 {
		return preds[0]
	}
	return And{Preds: preds}
}

// AnyOf disjoins preds, flattening the degenerate cases.
func AnyOf(preds ...Pred) Pred {
	if len(preds) == 1 {
		return preds[0]
	}
	return Or{Preds: preds}
}

// Query is a filter over published_datasets: the child tables to join in,
// plus the predicate. A nil Where matches every joined row.
type Query struct {
	// Joins lists tables joined onto published_datasets. Child tables join
	// on dataset_id; Gazetteer joins onto dataset_locations by name and
	// requires Locations in the list before it.
	Joins []Table
	Where Pred
}
