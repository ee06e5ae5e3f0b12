package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// Snapshot file names under <staticDir>/gis, written by the gazetteer
// loader and hashed alongside the index.
const (
	GazetteerFile = "gazetteer.geojson"
	AliasesFile   = "location_aliases.csv"
)

// IndexHashes fingerprints everything a client would sync: the serialized
// dataset index plus the two gazetteer snapshot files. All values are MD5
// hex digests of the exact bytes served.
type IndexHashes struct {
	Index           string `json:"index"`
	Gazetteer       string `json:"gazetteer"`
	LocationAliases string `json:"location_aliases"`
}

// IndexSnapshot is one fully built generation of the index cache. The
// JSON bytes are served verbatim so the hash always matches the body.
type IndexSnapshot struct {
	Hashes    IndexHashes
	IndexJSON []byte
}

// IndexSource is the slice of the dataset store the cache reads from.
type IndexSource interface {
	IndexRows(dbc dbctx.Context) ([]repos.IndexRow, error)
}

// IndexService caches the serialized dataset index. Builds are lazy and
// deduplicated; a build failure leaves the previous snapshot in place.
type IndexService interface {
	Get(ctx context.Context) (*IndexSnapshot, error)
	// Invalidate drops the cached snapshot so the next Get rebuilds.
	Invalidate()
	// Rebuild replaces the snapshot eagerly, keeping the old one on error.
	Rebuild(ctx context.Context) error
}

type indexService struct {
	source    IndexSource
	staticDir string
	log       *logger.Logger

	mu    sync.RWMutex
	cur   *IndexSnapshot
	group singleflight.Group
}

func NewIndexService(source IndexSource, staticDir string, baseLog *logger.Logger) IndexService {
	return &indexService{
		source:    source,
		staticDir: staticDir,
		log:       baseLog.With("service", "IndexService"),
	}
}

func (s *indexService) Get(ctx context.Context) (*IndexSnapshot, error) {
	s.mu.RLock()
	cur := s.cur
	s.mu.RUnlock()
	if cur != nil {
		return cur, nil
	}
	return s.buildShared(ctx)
}

func (s *indexService) Invalidate() {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
	s.group.Forget("index")
}

func (s *indexService) Rebuild(ctx context.Context) error {
	s.group.Forget("index")
	_, err := s.buildShared(ctx)
	return err
}

// buildShared collapses concurrent builds into one; every waiter gets the
// same snapshot or the same error.
func (s *indexService) buildShared(ctx context.Context) (*IndexSnapshot, error) {
	v, err, _ := s.group.Do("index", func() (any, error) {
		snap, err := s.build(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cur = snap
		s.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*IndexSnapshot), nil
}

func (s *indexService) build(ctx context.Context) (*IndexSnapshot, error) {
	rows, err := s.source.IndexRows(dbctx.New(ctx))
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("serialize index: %w", err)
	}

	snap := &IndexSnapshot{IndexJSON: body}
	snap.Hashes.Index = md5Hex(body)
	snap.Hashes.Gazetteer, err = s.fileHash(GazetteerFile)
	if err != nil {
		return nil, err
	}
	snap.Hashes.LocationAliases, err = s.fileHash(AliasesFile)
	if err != nil {
		return nil, err
	}

	s.log.Info("index snapshot built",
		"rows", len(rows), "index_hash", snap.Hashes.Index)
	return snap, nil
}

// fileHash digests a gazetteer snapshot file. A missing file hashes as
// empty so the index stays servable before the first gazetteer upload.
func (s *indexService) fileHash(name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.staticDir, "gis", name))
	if os.IsNotExist(err) {
		return md5Hex(nil), nil
	}
	if err != nil {
		return "", fmt.Errorf("hash snapshot file %s: %w", name, err)
	}
	return md5Hex(b), nil
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
