package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

type fakeIndexSource struct {
	rows  []repos.IndexRow
	err   error
	calls int
}

func (f *fakeIndexSource) IndexRows(dbc dbctx.Context) ([]repos.IndexRow, error) {
	f.calls++
	return f.rows, f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}

func sampleRows() []repos.IndexRow {
	return []repos.IndexRow{{
		PublicationDate: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		ZenodoConceptID: 101,
		ZenodoRecordID:  1001,
		DatasetAccess:   "open",
		DatasetTitle:    "Beetle traps 2020",
		MostRecent:      true,
		Checksum:        "a3c5",
		Filename:        "beetles.xlsx",
		Filesize:        2048,
	}}
}

func TestIndexGetCachesSnapshot(t *testing.T) {
	src := &fakeIndexSource{rows: sampleRows()}
	svc := NewIndexService(src, t.TempDir(), testLogger(t))
	ctx := context.Background()

	first, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected one source read, got %d", src.calls)
	}
	if first != second {
		t.Fatal("expected the cached snapshot to be reused")
	}
	if len(first.IndexJSON) == 0 || first.Hashes.Index == "" {
		t.Fatalf("snapshot incomplete: %+v", first.Hashes)
	}
}

func TestIndexHashStableAcrossRebuilds(t *testing.T) {
	src := &fakeIndexSource{rows: sampleRows()}
	svc := NewIndexService(src, t.TempDir(), testLogger(t))
	ctx := context.Background()

	before, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.Invalidate()
	after, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected a rebuild after invalidation, got %d reads", src.calls)
	}
	if before.Hashes.Index != after.Hashes.Index {
		t.Fatal("identical content must produce an identical hash")
	}
}

func TestIndexHashChangesWithContent(t *testing.T) {
	src := &fakeIndexSource{rows: sampleRows()}
	svc := NewIndexService(src, t.TempDir(), testLogger(t))
	ctx := context.Background()

	before, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	extra := sampleRows()[0]
	extra.ZenodoRecordID = 1002
	src.rows = append(src.rows, extra)
	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.Hashes.Index == after.Hashes.Index {
		t.Fatal("changed content must change the hash")
	}
}

func TestIndexRebuildFailureKeepsOldSnapshot(t *testing.T) {
	src := &fakeIndexSource{rows: sampleRows()}
	svc := NewIndexService(src, t.TempDir(), testLogger(t))
	ctx := context.Background()

	before, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.err = errors.New("database down")
	if err := svc.Rebuild(ctx); err == nil {
		t.Fatal("expected the rebuild to fail")
	}

	after, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after != before {
		t.Fatal("a failed rebuild must leave the old snapshot in place")
	}
}

func TestIndexHashesCoverSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	src := &fakeIndexSource{rows: sampleRows()}
	svc := NewIndexService(src, dir, testLogger(t))
	ctx := context.Background()

	empty, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gis := filepath.Join(dir, "gis")
	if err := os.MkdirAll(gis, 0o755); err != nil {
		t.Fatalf("create snapshot dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(gis, GazetteerFile), []byte(`{"type":"FeatureCollection","features":[]}`), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Hashes.Gazetteer == empty.Hashes.Gazetteer {
		t.Fatal("gazetteer hash must change once a snapshot exists")
	}
	if loaded.Hashes.Index != empty.Hashes.Index {
		t.Fatal("index hash must not depend on the gazetteer snapshot")
	}
}
