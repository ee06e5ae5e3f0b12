package repos

import (
	"fmt"
	"strings"

	"github.com/safedata/safedata-server/internal/query"
)

// compileQuery turns a declarative query into join and where SQL fragments
// with ? placeholders. This is the only place predicate nodes meet SQL; the
// builders stay execution-agnostic.
func compileQuery(q query.Query) (joins string, where string, args []any) {
	parts := make([]string, 0, len(q.Joins))
	for _, t := range q.Joins {
		parts = append(parts, joinSQL(t))
	}
	joins = strings.Join(parts, " ")

	if q.Where != nil {
		where, args = compilePred(q.Where)
	}
	return joins, where, args
}

func joinSQL(t query.Table) string {
	if t == query.Gazetteer {
		// The gazetteer carries no dataset reference; it attaches through
		// the sampling-location name.
		return `JOIN gazetteer ON gazetteer.location = dataset_locations.name`
	}
	return fmt.Sprintf(`JOIN %s ON %s.dataset_id = published_datasets.id`, t, t)
}

func colSQL(c query.Col) string {
	return fmt.Sprintf("%s.%s", c.Table, c.Name)
}

func compilePred(p query.Pred) (string, []any) {
	switch n := p.(type) {
	case query.Cmp:
		return fmt.Sprintf("%s %s ?", colSQL(n.Col), n.Op), []any{n.Value}
	case query.Contains:
		return fmt.Sprintf("%s ILIKE ?", colSQL(n.Col)), []any{"%" + escapeLike(n.Needle) + "%"}
	case query.EqFold:
		return fmt.Sprintf("LOWER(%s) = LOWER(?)", colSQL(n.Col)), []any{n.Value}
	case query.DistanceWithin:
		return fmt.Sprintf("ST_Distance(%s, ?::geometry) <= ?", colSQL(n.Col)),
			[]any{string(n.Geom), n.Distance}
	case query.Relates:
		return fmt.Sprintf("%s(%s, ?::geometry)", relFunc(n.Rel), colSQL(n.Col)),
			[]any{string(n.Geom)}
	case query.Not:
		inner, args := compilePred(n.Pred)
		return fmt.Sprintf("NOT (%s)", inner), args
	case query.And:
		return compileList(n.Preds, " AND ")
	case query.Or:
		return compileList(n.Preds, " OR ")
	default:
		// Unknown node types cannot be produced by the builders.
		panic(fmt.Sprintf("repos: unknown predicate node %T", p))
	}
}

func compileList(preds []query.Pred, sep string) (string, []any) {
	if len(preds) == 0 {
		return "TRUE", nil
	}
	clauses := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		c, a := compilePred(p)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	if len(clauses) == 1 {
		return clauses[0], args
	}
	return "(" + strings.Join(clauses, sep) + ")", args
}

func relFunc(rel query.SpatialRel) string {
	switch rel {
	case query.RelIntersects:
		return "ST_Intersects"
	case query.RelContains:
		return "ST_Contains"
	case query.RelWithin:
		return "ST_Within"
	default:
		panic(fmt.Sprintf("repos: unknown spatial relation %q", rel))
	}
}

// escapeLike protects LIKE metacharacters in user-supplied needles so a
// search for "100%" matches the literal text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
