package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain/row"
)

var (
	offsetLimitRe = regexp.MustCompile(`(?i)\s+OFFSET\s+(\d+)\s+LIMIT\s+(\d+)\s*$`)
	distanceRe    = regexp.MustCompile(`VectorDistance\(\s*c\.([A-Za-z_][A-Za-z0-9_]*)\s*,\s*(@[A-Za-z_][A-Za-z0-9_]*)\s*\)`)
)

// Query runs dialect query text against the container and returns a lazy pager.
func (s *Store) Query(ctx context.Context, container, text string, params []db.Param) (db.Pager, error) {
	spec, err := s.spec(ctx, container)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	stmt, err := rewrite(spec, text)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	args, err := bindParams(params)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("%w: %w", db.ErrInvalidQuery, err)}
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	return &pager{rows: rows, cols: cols, size: s.pageSize}, nil
}

// rewrite translates dialect text into a SQLite statement:
// the container becomes a CTE named c, VectorDistance calls carry the
// field's declared metric, and OFFSET x LIMIT y becomes LIMIT y OFFSET x.
func rewrite(spec *db.ContainerSpec, text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) < 6 || !strings.EqualFold(text[:6], "SELECT") {
		return "", fmt.Errorf("%w: only SELECT is supported", db.ErrInvalidQuery)
	}

	metrics := make(map[string]db.DistanceMetric)
	for _, f := range spec.VectorFields() {
		metrics[f.Name] = f.Distance
	}
	text = distanceRe.ReplaceAllStringFunc(text, func(call string) string {
		m := distanceRe.FindStringSubmatch(call)
		metric, ok := metrics[m[1]]
		if !ok || metric == "" {
			return call
		}
		return "VectorDistance(c." + m[1] + ", " + m[2] + ", '" + string(metric) + "')"
	})

	text = offsetLimitRe.ReplaceAllString(text, " LIMIT $2 OFFSET $1")

	return containerCTE(spec) + " " + text, nil
}

func containerCTE(spec *db.ContainerSpec) string {
	cols := []string{"id", "doc AS c"}
	for _, f := range spec.Fields {
		if f.Name == "c" || f.Name == "id" {
			continue
		}
		cols = append(cols, "json_extract(doc, '$."+f.Name+"') AS "+quoteIdent(f.Name))
	}
	return "WITH c AS (SELECT " + strings.Join(cols, ", ") + " FROM " + quoteIdent(spec.Name) + ")"
}

// bindParams binds @name parameters by name. Vectors are passed as JSON arrays.
func bindParams(params []db.Param) ([]any, error) {
	args := make([]any, 0, len(params))
	for _, p := range params {
		name := strings.TrimPrefix(p.Name, "@")
		if !db.IsValidIdentifier(name) {
			return nil, fmt.Errorf("%w: bad parameter name %q", db.ErrInvalidQuery, p.Name)
		}

		val := p.Value
		switch v := p.Value.(type) {
		case []float32, []float64:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			val = string(raw)
		}
		args = append(args, sql.Named(name, val))
	}
	return args, nil
}

// pager reads rows from an open result set one page at a time.
type pager struct {
	rows *sql.Rows
	cols []string
	size int
	done bool
}

func (p *pager) More() bool { return !p.done }

func (p *pager) NextPage(ctx context.Context) ([]*row.Row, error) {
	if p.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		_ = p.Close()
		return nil, err
	}

	page := make([]*row.Row, 0, p.size)
	for len(page) < p.size {
		if !p.rows.Next() {
			err := p.rows.Err()
			_ = p.Close()
			if err != nil {
				return nil, &db.Error{Op: db.OpQuery, Err: err}
			}
			break
		}
		r, err := p.scan()
		if err != nil {
			_ = p.Close()
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		page = append(page, r)
	}
	return page, nil
}

func (p *pager) scan() (*row.Row, error) {
	vals := make([]any, len(p.cols))
	ptrs := make([]any, len(p.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := p.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	r := row.New()
	for i, col := range p.cols {
		r.Set(col, vals[i])
	}
	return r, nil
}

func (p *pager) Close() error {
	p.done = true
	return p.rows.Close()
}
