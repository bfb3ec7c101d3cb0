package retrieve

import (
	"strconv"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/domain/search/filter"
)

// Pass kinds, also used as metric labels.
const (
	KindMain     = "main"
	KindSubquery = "subquery"
	KindYears    = "years"
	KindClubs    = "clubs"
	KindEntities = "entities"
)

// Pass is one planned similarity search.
type Pass struct {
	Name     string // e.g. "main", "subquery_2", "years"
	Kind     string
	Vector   []float32
	Field    string
	Values   []string
	Optional bool
}

// Input carries the vectors and optional constraints of one request.
type Input struct {
	Query      []float32
	Subqueries [][]float32
	Metadata   domain.MetadataFilter
	Entities   domain.Attribute
}

// Plan lays out the passes in their fixed order: main, each sub-question,
// then years, clubs and entities when present.
func Plan(in Input) []Pass {
	passes := make([]Pass, 0, len(in.Subqueries)+4)
	passes = append(passes, Pass{Name: KindMain, Kind: KindMain, Vector: in.Query})
	for i, v := range in.Subqueries {
		passes = append(passes, Pass{Name: KindSubquery + "_" + strconv.Itoa(i+1), Kind: KindSubquery, Vector: v})
	}

	optional := []struct {
		kind, field string
		attr        domain.Attribute
	}{
		{KindYears, domain.FieldYear, in.Metadata.Years},
		{KindClubs, domain.FieldClub, in.Metadata.Clubs},
		{KindEntities, domain.FieldEntities, in.Entities},
	}
	for _, o := range optional {
		if !o.attr.Present() {
			continue
		}
		passes = append(passes, Pass{
			Name:     o.kind,
			Kind:     o.kind,
			Vector:   in.Query,
			Field:    o.field,
			Values:   o.attr.Values(),
			Optional: true,
		})
	}
	return passes
}

func (p Pass) query(topK int) (domain.VectorQuery, error) {
	q := domain.VectorQuery{Vector: p.Vector, TopK: topK}
	if p.Field == "" {
		return q, nil
	}
	expr, err := filter.In(p.Field, p.Values...)
	if err != nil {
		return domain.VectorQuery{}, err
	}
	q.Filter = expr
	return q, nil
}
