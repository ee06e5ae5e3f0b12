package query

import (
	"sort"
	"strings"
	"time"

	"github.com/safedata/safedata-server/internal/platform/apierr"
)

// Temporal match types accepted by ByDates.
const (
	MatchIntersect = "intersect"
	MatchContain   = "contain"
	MatchWithin    = "within"
	MatchDistance  = "distance"
)

const isoDate = "2006-01-02"

// ByTaxon matches datasets that record a taxon by GBIF id, exact scientific
// name, or rank. Rank is folded to lower case, matching how taxa are stored.
func ByTaxon(gbifID *int64, name, rank *string) Query {
	preds := []Pred{}
	if gbifID != nil {
		preds = append(preds,
			Cmp{Col: Col{Taxa, "taxon_id"}, Op: OpEq, Value: *gbifID},
			Cmp{Col: Col{Taxa, "taxon_auth"}, Op: OpEq, Value: "GBIF"},
		)
	}
	if name != nil {
		preds = append(preds, Cmp{Col: Col{Taxa, "taxon_name"}, Op: OpEq, Value: *name})
	}
	if rank != nil {
		preds = append(preds, Cmp{Col: Col{Taxa, "taxon_rank"}, Op: OpEq, Value: strings.ToLower(*rank)})
	}
	return Query{Joins: []Table{Taxa}, Where: AllOf(preds...)}
}

// ByAuthor matches on a case-insensitive substring of the author name.
func ByAuthor(name *string) Query {
	q := Query{Joins: []Table{Authors}}
	if name != nil {
		q.Where = Contains{Col: Col{Authors, "name"}, Needle: *name}
	}
	return q
}

// ByLocationName matches on a case-insensitive substring of the sampling
// location name. Aliases are not consulted here; the alias table is
// write-side metadata resolved by client tooling.
func ByLocationName(name *string) Query {
	q := Query{Joins: []Table{Locations}}
	if name != nil {
		q.Where = Contains{Col: Col{Locations, "name"}, Needle: *name}
	}
	return q
}

// ByDates matches dataset temporal extents against one or two
// comma-separated ISO dates. A single date is treated as a degenerate
// range; two dates are sorted ascending whatever order they arrive in.
// Unparseable input, more than two dates, or an unknown match type is a
// client error, never a panic.
func ByDates(date, matchType string) (Query, error) {
	parts := strings.Split(date, ",")
	if len(parts) > 2 {
		return Query{}, apierr.BadRequest("bad_date", "date contains more than two values: %s", date)
	}

	vals := make([]time.Time, 0, 2)
	for _, p := range parts {
		d, err := time.Parse(isoDate, strings.TrimSpace(p))
		if err != nil {
			return Query{}, apierr.BadRequest("bad_date", "could not parse dates: %s", date)
		}
		vals = append(vals, d)
	}
	if len(vals) == 1 {
		vals = append(vals, vals[0])
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].Before(vals[j]) })

	start := Col{Datasets, "temporal_extent_start"}
	end := Col{Datasets, "temporal_extent_end"}

	var where Pred
	switch matchType {
	case MatchIntersect:
		where = Not{Pred: AnyOf(
			Cmp{Col: start, Op: OpGe, Value: vals[1]},
			Cmp{Col: end, Op: OpLe, Value: vals[0]},
		)}
	case MatchContain:
		where = AllOf(
			Cmp{Col: start, Op: OpGe, Value: vals[0]},
			Cmp{Col: end, Op: OpLe, Value: vals[1]},
		)
	case MatchWithin:
		where = AllOf(
			Cmp{Col: start, Op: OpLe, Value: vals[0]},
			Cmp{Col: end, Op: OpGe, Value: vals[1]},
		)
	default:
		return Query{}, apierr.BadRequest("bad_match_type", "unknown date match type: %s", matchType)
	}

	return Query{Where: where}, nil
}

// ByField matches on a substring of the field name or description and/or a
// case-insensitive exact field type. Supplying neither returns every
// dataset with at least one field.
func ByField(text, ftype *string) Query {
	preds := []Pred{}
	if text != nil {
		preds = append(preds, AnyOf(
			Contains{Col: Col{Fields, "field_name"}, Needle: *text},
			Contains{Col: Col{Fields, "description"}, Needle: *text},
		))
	}
	if ftype != nil {
		preds = append(preds, EqFold{Col: Col{Fields, "field_type"}, Value: *ftype})
	}
	return Query{Joins: []Table{Fields}, Where: AllOf(preds...)}
}

// ByText free-text searches across field names and descriptions, worksheet
// titles and descriptions, the dataset title and description, and keywords.
func ByText(text string) Query {
	return Query{
		Joins: []Table{Fields, Worksheets, Keywords},
		Where: AnyOf(
			Contains{Col: Col{Fields, "field_name"}, Needle: text},
			Contains{Col: Col{Fields, "description"}, Needle: text},
			Contains{Col: Col{Worksheets, "title"}, Needle: text},
			Contains{Col: Col{Worksheets, "description"}, Needle: text},
			Contains{Col: Col{Datasets, "dataset_title"}, Needle: text},
			Contains{Col: Col{Datasets, "dataset_description"}, Needle: text},
			Contains{Col: Col{Keywords, "keyword"}, Needle: text},
		),
	}
}
