package services

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/dbctx"
	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/query"
)

// Parameters accepted by every search kind on top of its own set.
var sharedParams = []string{"most_recent", "ids"}

var searchParams = map[string][]string{
	"taxa":      {"gbif_id", "name", "rank"},
	"authors":   {"name"},
	"locations": {"name"},
	"dates":     {"date", "match_type"},
	"text":      {"text"},
	"fields":    {"text", "ftype"},
	"spatial":   {"wkt", "location", "distance"},
	"bbox":      {"wkt", "location", "match_type", "distance"},
}

// SearchService validates the query string for one search kind, builds the
// declarative query and executes it against the dataset store.
type SearchService interface {
	Search(ctx context.Context, kind string, params url.Values, opts repos.ExecOptions) (*repos.SearchResult, error)
}

type searchService struct {
	search repos.SearchRepo
	log    *logger.Logger
}

func NewSearchService(search repos.SearchRepo, baseLog *logger.Logger) SearchService {
	return &searchService{search: search, log: baseLog.With("service", "SearchService")}
}

func (s *searchService) Search(ctx context.Context, kind string, params url.Values, opts repos.ExecOptions) (*repos.SearchResult, error) {
	allowed, ok := searchParams[kind]
	if !ok {
		return nil, apierr.BadRequest("unknown_search", "unknown search type %q; available types: %s",
			kind, strings.Join(searchKinds(), ", "))
	}
	if err := checkParams(kind, params, allowed); err != nil {
		return nil, err
	}

	dbc := dbctx.New(ctx)
	q, err := s.buildQuery(dbc, kind, params)
	if err != nil {
		return nil, err
	}
	return s.search.Execute(dbc, q, opts)
}

func (s *searchService) buildQuery(dbc dbctx.Context, kind string, params url.Values) (query.Query, error) {
	switch kind {
	case "taxa":
		gbifID, err := optInt64(params, "gbif_id")
		if err != nil {
			return query.Query{}, err
		}
		return query.ByTaxon(gbifID, optString(params, "name"), optString(params, "rank")), nil

	case "authors":
		return query.ByAuthor(optString(params, "name")), nil

	case "locations":
		return query.ByLocationName(optString(params, "name")), nil

	case "dates":
		date := params.Get("date")
		if date == "" {
			return query.Query{}, apierr.BadRequest("missing_param", "date search requires a date")
		}
		return query.ByDates(date, matchType(params))

	case "text":
		text := params.Get("text")
		if text == "" {
			return query.Query{}, apierr.BadRequest("missing_param", "text search requires search text")
		}
		return query.ByText(text), nil

	case "fields":
		return query.ByField(optString(params, "text"), optString(params, "ftype")), nil

	case "spatial":
		geom, err := s.resolveGeometry(dbc, params)
		if err != nil {
			return query.Query{}, err
		}
		distance := 0.0
		if d, err := optFloat(params, "distance"); err != nil {
			return query.Query{}, err
		} else if d != nil {
			distance = *d
		}
		return query.BySamplingLocation(geom, distance), nil

	case "bbox":
		geom, err := s.resolveGeometry(dbc, params)
		if err != nil {
			return query.Query{}, err
		}
		distance, err := optFloat(params, "distance")
		if err != nil {
			return query.Query{}, err
		}
		return query.ByBoundingBox(geom, matchType(params), distance)
	}
	return query.Query{}, apierr.BadRequest("unknown_search", "unknown search type %q", kind)
}

func (s *searchService) resolveGeometry(dbc dbctx.Context, params url.Values) (query.Geom, error) {
	return s.search.ResolveQueryGeometry(dbc, optString(params, "location"), optString(params, "wkt"))
}

func matchType(params url.Values) string {
	if mt := params.Get("match_type"); mt != "" {
		return mt
	}
	return query.MatchIntersect
}

func checkParams(kind string, params url.Values, allowed []string) error {
	ok := map[string]bool{}
	for _, p := range allowed {
		ok[p] = true
	}
	for _, p := range sharedParams {
		ok[p] = true
	}
	for name := range params {
		if !ok[name] {
			return apierr.BadRequest("unknown_param", "unknown parameter %q for %s search; accepts: %s",
				name, kind, strings.Join(allowed, ", "))
		}
	}
	return nil
}

func searchKinds() []string {
	kinds := make([]string, 0, len(searchParams))
	for k := range searchParams {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func optString(params url.Values, key string) *string {
	if !params.Has(key) {
		return nil
	}
	v := params.Get(key)
	return &v
}

func optInt64(params url.Values, key string) (*int64, error) {
	if !params.Has(key) {
		return nil, nil
	}
	v, err := strconv.ParseInt(params.Get(key), 10, 64)
	if err != nil {
		return nil, apierr.BadRequest("bad_param", "parameter %q must be an integer", key)
	}
	return &v, nil
}

func optFloat(params url.Values, key string) (*float64, error) {
	if !params.Has(key) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(params.Get(key), 64)
	if err != nil {
		return nil, apierr.BadRequest("bad_param", "parameter %q must be a number", key)
	}
	return &v, nil
}
