package query

import (
	"github.com/safedata/safedata-server/internal/platform/apierr"
)

// BySamplingLocation matches datasets with a sampling location within
// distance (projected units, metres under the configured projection) of the
// resolved query geometry. Locations resolved through the gazetteer and
// locations carrying their own recorded geometry both count.
func BySamplingLocation(geom Geom, distance float64) Query {
	return Query{
		Joins: []Table{Locations, Gazetteer},
		Where: AnyOf(
			DistanceWithin{Col: Col{Gazetteer, "wkt_local"}, Geom: geom, Distance: distance},
			DistanceWithin{Col: Col{Locations, "wkt_local"}, Geom: geom, Distance: distance},
		),
	}
}

// ByBoundingBox matches dataset geographic extents against the resolved
// query geometry. The relations are query-relative: "contain" returns
// datasets whose extent contains the query geometry, "within" datasets
// whose extent falls inside it. "distance" needs an explicit distance.
func ByBoundingBox(geom Geom, matchType string, distance *float64) (Query, error) {
	extent := Col{Datasets, "geographic_extent_local"}

	switch matchType {
	case MatchIntersect:
		return Query{Where: Relates{Col: extent, Rel: RelIntersects, Geom: geom}}, nil
	case MatchContain:
		return Query{Where: Relates{Col: extent, Rel: RelContains, Geom: geom}}, nil
	case MatchWithin:
		return Query{Where: Relates{Col: extent, Rel: RelWithin, Geom: geom}}, nil
	case MatchDistance:
		if distance == nil {
			return Query{}, apierr.BadRequest("missing_distance", "match type distance requires a distance value")
		}
		return Query{Where: DistanceWithin{Col: extent, Geom: geom, Distance: *distance}}, nil
	default:
		return Query{}, apierr.BadRequest("bad_match_type", "unknown spatial match type: %s", matchType)
	}
}
