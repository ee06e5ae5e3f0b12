package query

import (
	"errors"
	"reflect"
	"testing"

	"github.com/safedata/safedata-server/internal/platform/apierr"
)

func TestByTaxonGBIFID(t *testing.T) {
	id := int64(4789)
	q := ByTaxon(&id, nil, nil)

	if !reflect.DeepEqual(q.Joins, []Table{Taxa}) {
		t.Fatalf("unexpected joins: %v", q.Joins)
	}
	and, ok := q.Where.(And)
	if !ok {
		t.Fatalf("expected And predicate, got %T", q.Where)
	}
	want := []Pred{
		Cmp{Col: Col{Taxa, "taxon_id"}, Op: OpEq, Value: id},
		Cmp{Col: Col{Taxa, "taxon_auth"}, Op: OpEq, Value: "GBIF"},
	}
	if !reflect.DeepEqual(and.Preds, want) {
		t.Fatalf("unexpected predicates: %#v", and.Preds)
	}
}

func TestByTaxonRankLowered(t *testing.T) {
	rank := "Family"
	q := ByTaxon(nil, nil, &rank)

	cmp, ok := q.Where.(Cmp)
	if !ok {
		t.Fatalf("expected Cmp predicate, got %T", q.Where)
	}
	if cmp.Value != "family" {
		t.Fatalf("rank not folded to lower case: %v", cmp.Value)
	}
}

func TestByAuthorNoName(t *testing.T) {
	q := ByAuthor(nil)
	if q.Where != nil {
		t.Fatalf("expected nil predicate, got %#v", q.Where)
	}
	if !reflect.DeepEqual(q.Joins, []Table{Authors}) {
		t.Fatalf("unexpected joins: %v", q.Joins)
	}
}

func TestByDatesOrderInsensitive(t *testing.T) {
	a, err := ByDates("2010-01-01,2012-06-30", MatchIntersect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ByDates("2012-06-30,2010-01-01", MatchIntersect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("queries differ by input order:\n%#v\n%#v", a, b)
	}
}

func TestByDatesSingleDateIsDegenerateRange(t *testing.T) {
	single, err := ByDates("2011-05-17", MatchContain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pair, err := ByDates("2011-05-17,2011-05-17", MatchContain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(single, pair) {
		t.Fatalf("single date should behave as a degenerate range")
	}
}

func TestByDatesErrors(t *testing.T) {
	cases := []struct {
		name      string
		date      string
		matchType string
	}{
		{"three dates", "2010-01-01,2011-01-01,2012-01-01", MatchIntersect},
		{"unparseable", "sometime in May", MatchIntersect},
		{"partial garbage", "2010-01-01,banana", MatchIntersect},
		{"bad match type", "2010-01-01", "overlaps"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ByDates(tc.date, tc.matchType)
			if err == nil {
				t.Fatal("expected an error")
			}
			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) || apiErr.Status != 400 {
				t.Fatalf("expected a 400 client error, got %v", err)
			}
		})
	}
}

func TestByDatesIntersectShape(t *testing.T) {
	q, err := ByDates("2010-01-01,2012-06-30", MatchIntersect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Intersection is expressed as the negation of the two disjoint cases.
	not, ok := q.Where.(Not)
	if !ok {
		t.Fatalf("expected Not predicate, got %T", q.Where)
	}
	if _, ok := not.Pred.(Or); !ok {
		t.Fatalf("expected Or under Not, got %T", not.Pred)
	}
}

func TestByTextJoinsAndClauses(t *testing.T) {
	q := ByText("rainfall")

	if !reflect.DeepEqual(q.Joins, []Table{Fields, Worksheets, Keywords}) {
		t.Fatalf("unexpected joins: %v", q.Joins)
	}
	or, ok := q.Where.(Or)
	if !ok {
		t.Fatalf("expected Or predicate, got %T", q.Where)
	}
	if len(or.Preds) != 7 {
		t.Fatalf("expected 7 clauses, got %d", len(or.Preds))
	}
	for _, p := range or.Preds {
		c, ok := p.(Contains)
		if !ok {
			t.Fatalf("expected Contains clause, got %T", p)
		}
		if c.Needle != "rainfall" {
			t.Fatalf("clause needle mismatch: %q", c.Needle)
		}
	}
}

func TestByFieldTypeOnly(t *testing.T) {
	ftype := "Numeric"
	q := ByField(nil, &ftype)

	ef, ok := q.Where.(EqFold)
	if !ok {
		t.Fatalf("expected EqFold predicate, got %T", q.Where)
	}
	if ef.Col != (Col{Fields, "field_type"}) || ef.Value != "Numeric" {
		t.Fatalf("unexpected predicate: %#v", ef)
	}
}

func TestByBoundingBoxDistanceRequiresValue(t *testing.T) {
	_, err := ByBoundingBox(Geom("deadbeef"), MatchDistance, nil)
	if err == nil {
		t.Fatal("expected an error for distance match without a distance")
	}
	if apierr.StatusOf(err) != 400 {
		t.Fatalf("expected a 400 client error, got %v", err)
	}

	d := 1500.0
	q, err := ByBoundingBox(Geom("deadbeef"), MatchDistance, &d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dw, ok := q.Where.(DistanceWithin)
	if !ok {
		t.Fatalf("expected DistanceWithin predicate, got %T", q.Where)
	}
	if dw.Distance != d {
		t.Fatalf("distance mismatch: %v", dw.Distance)
	}
}

func TestBySamplingLocationCoversBothGeometrySources(t *testing.T) {
	q := BySamplingLocation(Geom("deadbeef"), 250)

	if !reflect.DeepEqual(q.Joins, []Table{Locations, Gazetteer}) {
		t.Fatalf("unexpected joins: %v", q.Joins)
	}
	or, ok := q.Where.(Or)
	if !ok {
		t.Fatalf("expected Or predicate, got %T", q.Where)
	}
	cols := map[Col]bool{}
	for _, p := range or.Preds {
		dw, ok := p.(DistanceWithin)
		if !ok {
			t.Fatalf("expected DistanceWithin clause, got %T", p)
		}
		cols[dw.Col] = true
	}
	if !cols[Col{Gazetteer, "wkt_local"}] || !cols[Col{Locations, "wkt_local"}] {
		t.Fatalf("expected both gazetteer and dataset location geometries, got %v", cols)
	}
}
