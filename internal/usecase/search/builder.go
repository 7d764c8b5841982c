package search

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/incidex/internal/db"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
)

// Synthetic column names produced by Build.
const (
	CombinedScoreColumn = "CombinedScore"
	ScoreSuffix         = "_Score"
	DocumentAlias       = "c"
	paramPrefix         = "@embedding"
)

// Query is rendered query text with its parameters, bound by name.
type Query struct {
	Text            string
	Params          []db.Param
	ScoreColumns    []string // CombinedScore and every <field>_Score
	SelectsDocument bool
}

// Build renders a weighted multi-vector query:
//
//	SELECT <fields|c>, VectorDistance(c.F, @embedding0) AS F_Score, ...,
//	  w0 * VectorDistance(c.F, @embedding0) + ... AS CombinedScore
//	FROM c [WHERE filter] ORDER BY w0 * VectorDistance(c.F, @embedding0) + ... [OFFSET 0 LIMIT n]
//
// Fields are taken in the order of spec.Fields for both text and parameters.
// The ORDER BY clause repeats the combined expression instead of its alias.
func Build(spec *domsearch.Spec) (*Query, error) {
	if err := spec.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // validation errors pass through typed
	}

	fields := spec.Fields()
	distances := make([]string, len(fields))
	terms := make([]string, len(fields))
	params := make([]db.Param, len(fields))
	scoreCols := make([]string, 0, len(fields)+1)

	for i, f := range fields {
		p := paramPrefix + strconv.Itoa(i)
		distances[i] = "VectorDistance(c." + f + ", " + p + ")"
		terms[i] = strconv.FormatFloat(spec.Weights[f], 'f', -1, 64) + " * " + distances[i]
		params[i] = db.Param{Name: p, Value: spec.Vectors[f]}
		scoreCols = append(scoreCols, f+ScoreSuffix)
	}
	combined := strings.Join(terms, " + ")
	scoreCols = append(scoreCols, CombinedScoreColumn)

	var b strings.Builder
	b.WriteString("SELECT ")
	if spec.SelectsDocument() {
		b.WriteString(DocumentAlias)
	} else {
		b.WriteString(strings.Join(spec.SelectFields, ", "))
	}
	for i, f := range fields {
		b.WriteString(", ")
		b.WriteString(distances[i])
		b.WriteString(" AS ")
		b.WriteString(f + ScoreSuffix)
	}
	b.WriteString(", ")
	b.WriteString(combined)
	b.WriteString(" AS ")
	b.WriteString(CombinedScoreColumn)
	b.WriteString(" FROM c")
	if spec.Filter != "" {
		b.WriteString(" WHERE ")
		b.WriteString(spec.Filter)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(combined)
	if spec.MaxResults > 0 {
		b.WriteString(" OFFSET 0 LIMIT ")
		b.WriteString(strconv.Itoa(spec.MaxResults))
	}

	return &Query{
		Text:            b.String(),
		Params:          params,
		ScoreColumns:    scoreCols,
		SelectsDocument: spec.SelectsDocument(),
	}, nil
}
