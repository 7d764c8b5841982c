package chi

import (
	"errors"
	"fmt"

	dominc "github.com/kailas-cloud/incidex/internal/domain/incident"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
	"github.com/kailas-cloud/incidex/internal/domain/search/filter"
	incidentuc "github.com/kailas-cloud/incidex/internal/usecase/incident"
	"github.com/kailas-cloud/incidex/internal/usecase/ingest"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type incidentDTO struct {
	IncidentID         string `json:"incidentId"`
	Severity           int    `json:"severity"`
	Status             string `json:"status"`
	OwningTeamName     string `json:"owningTeamName"`
	OwningContactAlias string `json:"owningContactAlias"`
	OwningContactName  string `json:"owningContactName"`
	TsgID              string `json:"tsgId"`
	ResolveDate        string `json:"resolveDate"`
	ResolvedBy         string `json:"resolvedBy"`
	Title              string `json:"title"`
	Mitigation         string `json:"mitigation"`
	MitigateDate       string `json:"mitigateDate"`
	MitigatedBy        string `json:"mitigatedBy"`
	HowFixed           string `json:"howFixed"`
	Summary            string `json:"summary"`
}

func (d *incidentDTO) toDomain() *dominc.Incident {
	return &dominc.Incident{
		IncidentID:         d.IncidentID,
		Severity:           d.Severity,
		Status:             d.Status,
		OwningTeamName:     d.OwningTeamName,
		OwningContactAlias: d.OwningContactAlias,
		OwningContactName:  d.OwningContactName,
		TsgID:              d.TsgID,
		ResolveDate:        d.ResolveDate,
		ResolvedBy:         d.ResolvedBy,
		Title:              d.Title,
		Mitigation:         d.Mitigation,
		MitigateDate:       d.MitigateDate,
		MitigatedBy:        d.MitigatedBy,
		HowFixed:           d.HowFixed,
		Summary:            d.Summary,
	}
}

func incidentFrom(i *dominc.Incident) incidentDTO {
	return incidentDTO{
		IncidentID:         i.IncidentID,
		Severity:           i.Severity,
		Status:             i.Status,
		OwningTeamName:     i.OwningTeamName,
		OwningContactAlias: i.OwningContactAlias,
		OwningContactName:  i.OwningContactName,
		TsgID:              i.TsgID,
		ResolveDate:        i.ResolveDate,
		ResolvedBy:         i.ResolvedBy,
		Title:              i.Title,
		Mitigation:         i.Mitigation,
		MitigateDate:       i.MitigateDate,
		MitigatedBy:        i.MitigatedBy,
		HowFixed:           i.HowFixed,
		Summary:            i.Summary,
	}
}

type ingestResponse struct {
	Message        string         `json:"message"`
	CollectionName string         `json:"collectionName,omitempty"`
	RunID          string         `json:"runId,omitempty"`
	Ingested       int            `json:"ingested"`
	Shortfalls     map[string]int `json:"shortfalls,omitempty"`
}

func ingestResponseFrom(r ingest.Report, container string) ingestResponse {
	return ingestResponse{
		Message:        "Successfully ingested incidents",
		CollectionName: container,
		RunID:          r.RunID,
		Ingested:       r.Ingested,
		Shortfalls:     r.Shortfalls,
	}
}

type searchSimilarRequest struct {
	Incident       *incidentDTO `json:"incident"`
	CollectionName string       `json:"collectionName"`
	TitleWeight    *float64     `json:"titleWeight"`
	SummaryWeight  *float64     `json:"summaryWeight"`
	MaxResults     int          `json:"maxResults"`
	Filter         *filterDTO   `json:"filter"`
}

type sourceIncident struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type resultDTO struct {
	Incident        incidentDTO `json:"incident"`
	SimilarityScore float64     `json:"similarityScore"`
}

type searchSimilarResponse struct {
	SourceIncident sourceIncident `json:"sourceIncident"`
	Results        []resultDTO    `json:"results"`
	Count          int            `json:"count"`
}

func searchSimilarResponseFrom(res *incidentuc.SimilarResult) searchSimilarResponse {
	results := resultsFrom(res.Hits)
	return searchSimilarResponse{
		SourceIncident: sourceIncident{Title: res.Source.Title, Summary: res.Source.Summary},
		Results:        results,
		Count:          len(results),
	}
}

type searchResponse struct {
	Query   string      `json:"query"`
	Results []resultDTO `json:"results"`
	Count   int         `json:"count"`
}

func resultsFrom(hits []domsearch.Hit[dominc.Incident]) []resultDTO {
	out := make([]resultDTO, len(hits))
	for i := range hits {
		out[i] = resultDTO{Incident: incidentFrom(&hits[i].Item), SimilarityScore: hits[i].Score}
	}
	return out
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type filterDTO struct {
	Must    []conditionDTO `json:"must"`
	Should  []conditionDTO `json:"should"`
	MustNot []conditionDTO `json:"must_not"`
}

type conditionDTO struct {
	Key   string    `json:"key"`
	Match *string   `json:"match,omitempty"`
	Range *rangeDTO `json:"range,omitempty"`
}

type rangeDTO struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// filterFromRequest validates f and renders it as a WHERE clause body.
func filterFromRequest(f *filterDTO) (string, error) {
	if f == nil {
		return "", nil
	}

	must, err := conditionsFromRequest(f.Must)
	if err != nil {
		return "", err
	}
	should, err := conditionsFromRequest(f.Should)
	if err != nil {
		return "", err
	}
	mustNot, err := conditionsFromRequest(f.MustNot)
	if err != nil {
		return "", err
	}

	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return "", fmt.Errorf("new expression: %w", err)
	}
	return expr.Render(), nil
}

func conditionsFromRequest(cs []conditionDTO) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromRequest(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromRequest(c conditionDTO) (filter.Condition, error) {
	if c.Match != nil && c.Range != nil {
		return filter.Condition{},
			fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	}
	if c.Match != nil {
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	}
	if c.Range != nil {
		rf, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
	return filter.Condition{}, errors.New("filter condition must have either match or range")
}
