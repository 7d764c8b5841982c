// Package incident defines the incident record stored and searched by incidex.
package incident

import (
	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/row"
)

// Column names used by the store and upstream sources.
const (
	KeyColumn              = "IncidentId"
	TitleColumn            = "Title"
	SummaryColumn          = "Summary"
	TitleEmbeddingColumn   = "TittleEmbedding"
	SummaryEmbeddingColumn = "SummaryEmbedding"
)

// Incident is one resolved or active incident.
type Incident struct {
	IncidentID         string
	Severity           int
	Status             string
	OwningTeamName     string
	OwningContactAlias string
	OwningContactName  string
	TsgID              string
	ResolveDate        string
	ResolvedBy         string
	Title              string
	Mitigation         string
	MitigateDate       string
	MitigatedBy        string
	HowFixed           string
	Summary            string

	TitleEmbedding   []float32
	SummaryEmbedding []float32
}

// Mapping is the column table shared by sources, the store and search results.
var Mapping = row.NewMapping(
	row.String(KeyColumn, func(i *Incident) *string { return &i.IncidentID }).Require(),
	row.Int("Severity", func(i *Incident) *int { return &i.Severity }),
	row.String("Status", func(i *Incident) *string { return &i.Status }),
	row.String("OwningTeamName", func(i *Incident) *string { return &i.OwningTeamName }),
	row.String("OwningContactAlias", func(i *Incident) *string { return &i.OwningContactAlias }),
	row.String("OwningContactName", func(i *Incident) *string { return &i.OwningContactName }),
	row.String("TsgId", func(i *Incident) *string { return &i.TsgID }),
	row.String("ResolveDate", func(i *Incident) *string { return &i.ResolveDate }),
	row.String("ResolvedBy", func(i *Incident) *string { return &i.ResolvedBy }),
	row.String(TitleColumn, func(i *Incident) *string { return &i.Title }),
	row.String("Mitigation", func(i *Incident) *string { return &i.Mitigation }),
	row.String("MitigateDate", func(i *Incident) *string { return &i.MitigateDate }),
	row.String("MitigatedBy", func(i *Incident) *string { return &i.MitigatedBy }),
	row.String("HowFixed", func(i *Incident) *string { return &i.HowFixed }),
	row.String(SummaryColumn, func(i *Incident) *string { return &i.Summary }),
	row.Vector(TitleEmbeddingColumn, func(i *Incident) *[]float32 { return &i.TitleEmbedding }),
	row.Vector(SummaryEmbeddingColumn, func(i *Incident) *[]float32 { return &i.SummaryEmbedding }),
)

// Key returns the incident id.
func (i *Incident) Key() string { return i.IncidentID }

// EmbeddingFields returns the title and summary texts with their vector slots.
func (i *Incident) EmbeddingFields() []domain.EmbeddingField {
	return []domain.EmbeddingField{
		{
			Name: TitleEmbeddingColumn,
			Text: i.Title,
			Get:  func() []float32 { return i.TitleEmbedding },
			Set:  func(v []float32) { i.TitleEmbedding = v },
		},
		{
			Name: SummaryEmbeddingColumn,
			Text: i.Summary,
			Get:  func() []float32 { return i.SummaryEmbedding },
			Set:  func(v []float32) { i.SummaryEmbedding = v },
		},
	}
}

// Encode renders the incident as a stored document.
func Encode(i *Incident) ([]byte, error) {
	return Mapping.Encode(i) //nolint:wrapcheck // caller wraps
}

// Pointers returns a pointer to every element of items.
func Pointers(items []Incident) []*Incident {
	out := make([]*Incident, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
