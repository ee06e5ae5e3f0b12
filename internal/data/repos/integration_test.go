package repos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/data/repos/testutil"
	"github.com/safedata/safedata-server/internal/domain"
	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/query"
)

const testEPSG = 32650

func testDataset(conceptID, recordID int64, title string) *domain.PublishedDataset {
	return &domain.PublishedDataset{
		UploadDatetime:      time.Now().UTC(),
		DatasetTitle:        title,
		DatasetAccess:       domain.AccessOpen,
		DatasetDescription:  "integration fixture",
		DatasetMetadata:     []byte(`{"title": "` + title + `"}`),
		MostRecent:          true,
		PublicationDate:     time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC),
		ZenodoMetadata:      []byte(`{}`),
		ZenodoRecordID:      recordID,
		ZenodoConceptID:     conceptID,
		GeographicExtent:    "SRID=4326;POLYGON((116.75 4.5, 117.82 4.5, 117.82 5.07, 116.75 5.07, 116.75 4.5))",
		TemporalExtentStart: time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC),
		TemporalExtentEnd:   time.Date(2020, 11, 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestDatasetVersioning(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	repo := repos.NewDatasetRepo(db, testutil.Logger(t))

	v1 := testDataset(101, 1001, "Beetle traps 2020")
	if err := repo.Insert(dbc, v1); err != nil {
		t.Fatalf("insert v1: %v", err)
	}
	v2 := testDataset(101, 1002, "Beetle traps 2020 (revised)")
	if err := repo.Insert(dbc, v2); err != nil {
		t.Fatalf("insert v2: %v", err)
	}
	if err := repo.DemoteOtherVersions(dbc, 101, v2.ID); err != nil {
		t.Fatalf("demote: %v", err)
	}

	got, err := repo.GetByRecordID(dbc, 1001)
	if err != nil {
		t.Fatalf("load v1: %v", err)
	}
	if got.MostRecent {
		t.Fatal("previous version still flagged most recent")
	}
	got, err = repo.GetByRecordID(dbc, 1002)
	if err != nil {
		t.Fatalf("load v2: %v", err)
	}
	if !got.MostRecent {
		t.Fatal("new version lost its most recent flag")
	}

	_, err = repo.GetByRecordID(dbc, 9999)
	if apierr.StatusOf(err) != 404 {
		t.Fatalf("expected a 404 for an unknown record, got %v", err)
	}
}

func TestIndexRowsIncludeEveryFile(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	repo := repos.NewDatasetRepo(db, testutil.Logger(t))

	ds := testDataset(102, 1003, "Soil cores")
	if err := repo.Insert(dbc, ds); err != nil {
		t.Fatalf("insert dataset: %v", err)
	}
	files := []*domain.DatasetFile{
		{DatasetID: ds.ID, Checksum: "a1", Filename: "cores.xlsx", Filesize: 1024},
		{DatasetID: ds.ID, Checksum: "b2", Filename: "readme.md", Filesize: 64},
	}
	if err := repo.InsertFiles(dbc, files); err != nil {
		t.Fatalf("insert files: %v", err)
	}

	rows, err := repo.IndexRows(dbc)
	if err != nil {
		t.Fatalf("load index rows: %v", err)
	}
	var seen int
	for _, row := range rows {
		if row.ZenodoRecordID == 1003 {
			seen++
			if row.DatasetTitle != "Soil cores" {
				t.Fatalf("file row missing dataset columns: %+v", row)
			}
		}
	}
	if seen != 2 {
		t.Fatalf("expected one index row per file, got %d", seen)
	}
}

func TestSearchExecuteMostRecentFilter(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	datasets := repos.NewDatasetRepo(db, testutil.Logger(t))
	search := repos.NewSearchRepo(db, testutil.Logger(t), testEPSG)

	old := testDataset(103, 1004, "Moth light traps")
	old.MostRecent = false
	if err := datasets.Insert(dbc, old); err != nil {
		t.Fatalf("insert old version: %v", err)
	}
	current := testDataset(103, 1005, "Moth light traps v2")
	if err := datasets.Insert(dbc, current); err != nil {
		t.Fatalf("insert current version: %v", err)
	}
	taxa := []*domain.DatasetTaxon{
		{DatasetID: old.ID, TaxonAuth: "GBIF", TaxonName: "Lepidoptera", TaxonRank: "order"},
		{DatasetID: current.ID, TaxonAuth: "GBIF", TaxonName: "Lepidoptera", TaxonRank: "order"},
	}
	if err := datasets.InsertTaxa(dbc, taxa); err != nil {
		t.Fatalf("insert taxa: %v", err)
	}

	name := "Lepidoptera"
	q := query.ByTaxon(nil, &name, nil)

	res, err := search.Execute(dbc, q, repos.ExecOptions{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("expected both versions without the filter, got %d", res.Count)
	}

	res, err = search.Execute(dbc, q, repos.ExecOptions{MostRecent: true})
	if err != nil {
		t.Fatalf("execute most_recent: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("expected only the current version, got %d", res.Count)
	}

	res, err = search.Execute(dbc, q, repos.ExecOptions{IDs: []int64{1004}})
	if err != nil {
		t.Fatalf("execute ids: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("expected only the requested record, got %d", res.Count)
	}
}

func TestSearchDatesIntersectBoundaries(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	datasets := repos.NewDatasetRepo(db, testutil.Logger(t))
	search := repos.NewSearchRepo(db, testutil.Logger(t), testEPSG)

	ds := testDataset(104, 1006, "June butterfly counts")
	ds.TemporalExtentStart = time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)
	ds.TemporalExtentEnd = time.Date(2014, 6, 30, 0, 0, 0, 0, time.UTC)
	if err := datasets.Insert(dbc, ds); err != nil {
		t.Fatalf("insert dataset: %v", err)
	}

	cases := []struct {
		name  string
		date  string
		match int
	}{
		{"date inside the extent", "2014-06-15", 1},
		{"date after the extent", "2014-07-01", 0},
		{"range equal to the extent", "2014-06-01,2014-06-30", 1},
	}
	for _, tc := range cases {
		q, err := query.ByDates(tc.date, query.MatchIntersect)
		if err != nil {
			t.Fatalf("%s: build query: %v", tc.name, err)
		}
		res, err := search.Execute(dbc, q, repos.ExecOptions{IDs: []int64{1006}})
		if err != nil {
			t.Fatalf("%s: execute: %v", tc.name, err)
		}
		if res.Count != tc.match {
			t.Fatalf("%s: expected %d matches, got %d", tc.name, tc.match, res.Count)
		}
	}
}

func TestSearchBoundingBoxPointRelations(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	datasets := repos.NewDatasetRepo(db, testutil.Logger(t))
	search := repos.NewSearchRepo(db, testutil.Logger(t), testEPSG)

	ds := testDataset(105, 1007, "Regional vegetation plots")
	ds.GeographicExtent = "SRID=4326;POLYGON((110 0, 120 0, 120 10, 110 10, 110 0))"
	if err := datasets.Insert(dbc, ds); err != nil {
		t.Fatalf("insert dataset: %v", err)
	}
	if err := datasets.SetLocalExtent(dbc, ds.ID, testEPSG); err != nil {
		t.Fatalf("set local extent: %v", err)
	}

	wkt := "POINT(116.5 4.75)"
	geom, err := search.ResolveQueryGeometry(dbc, nil, &wkt)
	if err != nil {
		t.Fatalf("resolve geometry: %v", err)
	}

	// The extent contains the point, so "contain" matches; the extent
	// cannot fall within a point, so "within" does not.
	q, err := query.ByBoundingBox(geom, query.MatchContain, nil)
	if err != nil {
		t.Fatalf("build contain query: %v", err)
	}
	res, err := search.Execute(dbc, q, repos.ExecOptions{IDs: []int64{1007}})
	if err != nil {
		t.Fatalf("execute contain: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("expected the extent to contain the point, got %d matches", res.Count)
	}

	q, err = query.ByBoundingBox(geom, query.MatchWithin, nil)
	if err != nil {
		t.Fatalf("build within query: %v", err)
	}
	res, err = search.Execute(dbc, q, repos.ExecOptions{IDs: []int64{1007}})
	if err != nil {
		t.Fatalf("execute within: %v", err)
	}
	if res.Count != 0 {
		t.Fatalf("extent must not fall within a point, got %d matches", res.Count)
	}
}

func TestSearchLocationNameIgnoresAliases(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	datasets := repos.NewDatasetRepo(db, testutil.Logger(t))
	gaz := repos.NewGazetteerRepo(db, testutil.Logger(t))
	search := repos.NewSearchRepo(db, testutil.Logger(t), testEPSG)

	if err := gaz.TruncateLocations(dbc); err != nil {
		t.Fatalf("truncate locations: %v", err)
	}
	if err := gaz.InsertLocation(dbc, repos.GazetteerRow{
		Location:     "A_1",
		GeometryJSON: `{"type": "Point", "coordinates": [117.5, 4.75]}`,
	}); err != nil {
		t.Fatalf("insert gazetteer location: %v", err)
	}
	if err := gaz.TruncateAliases(dbc); err != nil {
		t.Fatalf("truncate aliases: %v", err)
	}
	if err := gaz.InsertAlias(dbc, &domain.GazetteerAlias{Location: "A_1", Alias: "A1"}); err != nil {
		t.Fatalf("insert alias: %v", err)
	}

	ds := testDataset(106, 1008, "Transect point counts")
	if err := datasets.Insert(dbc, ds); err != nil {
		t.Fatalf("insert dataset: %v", err)
	}
	if err := datasets.InsertLocations(dbc, []*domain.DatasetLocation{
		{DatasetID: ds.ID, Name: "A_1", LocType: "transect"},
	}); err != nil {
		t.Fatalf("insert dataset location: %v", err)
	}

	// The location-name search matches sampling location names only; the
	// alias table is never consulted on the read path.
	for _, tc := range []struct {
		name  string
		match int
	}{
		{"A1", 0},
		{"A_1", 1},
	} {
		q := query.ByLocationName(&tc.name)
		res, err := search.Execute(dbc, q, repos.ExecOptions{IDs: []int64{1008}})
		if err != nil {
			t.Fatalf("execute name=%s: %v", tc.name, err)
		}
		if res.Count != tc.match {
			t.Fatalf("name=%s: expected %d matches, got %d", tc.name, tc.match, res.Count)
		}
	}
}

func TestGazetteerAliasConstraints(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	repo := repos.NewGazetteerRepo(db, testutil.Logger(t))

	if err := repo.TruncateLocations(dbc); err != nil {
		t.Fatalf("truncate locations: %v", err)
	}
	row := repos.GazetteerRow{
		Location:     "A_1",
		LocationType: "transect",
		GeometryJSON: `{"type": "Point", "coordinates": [117.5, 4.75]}`,
	}
	if err := repo.InsertLocation(dbc, row); err != nil {
		t.Fatalf("insert location: %v", err)
	}
	if err := repo.ReprojectLocations(dbc, testEPSG); err != nil {
		t.Fatalf("reproject: %v", err)
	}

	ok, err := repo.LocationExists(dbc, "A_1")
	if err != nil || !ok {
		t.Fatalf("location lookup: ok=%v err=%v", ok, err)
	}
	ok, err = repo.LocationExists(dbc, "Narnia")
	if err != nil || ok {
		t.Fatalf("phantom location: ok=%v err=%v", ok, err)
	}

	if err := repo.TruncateAliases(dbc); err != nil {
		t.Fatalf("truncate aliases: %v", err)
	}
	alias := &domain.GazetteerAlias{Location: "A_1", Alias: "plot one"}
	if err := repo.InsertAlias(dbc, alias); err != nil {
		t.Fatalf("insert alias: %v", err)
	}
	dup := &domain.GazetteerAlias{Location: "A_1", Alias: "plot one"}
	err = repo.InsertAlias(dbc, dup)
	if !errors.Is(err, repos.ErrDuplicateAlias) {
		t.Fatalf("expected ErrDuplicateAlias, got %v", err)
	}
}

func TestResolveQueryGeometry(t *testing.T) {
	db := testutil.DB(t)
	testutil.Migrate(t, db)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	gaz := repos.NewGazetteerRepo(db, testutil.Logger(t))
	search := repos.NewSearchRepo(db, testutil.Logger(t), testEPSG)

	if err := gaz.TruncateLocations(dbc); err != nil {
		t.Fatalf("truncate locations: %v", err)
	}
	if err := gaz.InsertLocation(dbc, repos.GazetteerRow{
		Location:     "A_1",
		GeometryJSON: `{"type": "Point", "coordinates": [117.5, 4.75]}`,
	}); err != nil {
		t.Fatalf("insert location: %v", err)
	}
	if err := gaz.ReprojectLocations(dbc, testEPSG); err != nil {
		t.Fatalf("reproject: %v", err)
	}

	loc := "A_1"
	geom, err := search.ResolveQueryGeometry(dbc, &loc, nil)
	if err != nil {
		t.Fatalf("resolve by location: %v", err)
	}
	if geom == "" {
		t.Fatal("empty geometry for a known location")
	}

	unknown := "Narnia"
	_, err = search.ResolveQueryGeometry(dbc, &unknown, nil)
	if apierr.CodeOf(err) != "unknown_location" {
		t.Fatalf("expected unknown_location, got %v", err)
	}

	wkt := "POINT(117.5 4.75)"
	geom, err = search.ResolveQueryGeometry(dbc, nil, &wkt)
	if err != nil {
		t.Fatalf("resolve by wkt: %v", err)
	}
	if geom == "" {
		t.Fatal("empty geometry for a valid wkt")
	}

	badWKT := "POINT(117.5"
	_, err = search.ResolveQueryGeometry(dbc, nil, &badWKT)
	if apierr.StatusOf(err) != 400 {
		t.Fatalf("expected a 400 for malformed wkt, got %v", err)
	}

	_, err = search.ResolveQueryGeometry(dbc, &loc, &wkt)
	if apierr.StatusOf(err) != 400 {
		t.Fatalf("expected a 400 for both inputs, got %v", err)
	}
	_, err = search.ResolveQueryGeometry(dbc, nil, nil)
	if apierr.StatusOf(err) != 400 {
		t.Fatalf("expected a 400 for neither input, got %v", err)
	}
}
