// Package filter models structured search filters and renders them into the
// WHERE clause of the document query dialect.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	groups := []struct {
		name  string
		conds []Condition
	}{{"must", must}, {"should", should}, {"must_not", mustNot}}
	for _, g := range groups {
		if len(g.conds) > MaxConditionsPerGroup {
			return Expression{}, fmt.Errorf("too many %s conditions (max %d)", g.name, MaxConditionsPerGroup)
		}
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Render returns the WHERE clause body over the document alias c, or "" for an empty expression.
// must conditions are ANDed, should conditions ORed as one group, must_not conditions negated.
func (e Expression) Render() string {
	var parts []string
	for _, c := range e.must {
		parts = append(parts, c.render())
	}
	if len(e.should) > 0 {
		alts := make([]string, len(e.should))
		for i, c := range e.should {
			alts[i] = c.render()
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	for _, c := range e.mustNot {
		parts = append(parts, "NOT ("+c.render()+")")
	}
	return strings.Join(parts, " AND ")
}

// Condition is a single filter clause: either an exact match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact string match condition.
func NewMatch(key, match string) (Condition, error) {
	if err := validateKey(key); err != nil {
		return Condition{}, err
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if err := validateKey(key); err != nil {
		return Condition{}, err
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

func (c Condition) render() string {
	field := "c." + c.key
	if c.IsMatch() {
		return field + " = " + quote(c.match)
	}

	var bounds []string
	add := func(op string, v *float64) {
		if v != nil {
			bounds = append(bounds, field+" "+op+" "+strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	add(">", c.rangeExpr.gt)
	add(">=", c.rangeExpr.gte)
	add("<", c.rangeExpr.lt)
	add("<=", c.rangeExpr.lte)
	return strings.Join(bounds, " AND ")
}

// quote renders s as a single-quoted literal, doubling embedded quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("filter key is required")
	}
	for i, r := range key {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && (!isDigit || i == 0) {
			return fmt.Errorf("filter key %q must be an identifier", key)
		}
	}
	return nil
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
