package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/domain/row"
)

const maxLineBytes = 4 << 20

// JSONL reads one JSON object per line from a file.
type JSONL[T any] struct {
	path    string
	mapping row.Mapping[T]
	logger  *zap.Logger
}

// NewJSONL creates a JSONL file source.
func NewJSONL[T any](path string, mapping row.Mapping[T], logger *zap.Logger) *JSONL[T] {
	return &JSONL[T]{path: path, mapping: mapping, logger: logger}
}

// Fetch reads the whole file. Blank lines are ignored; a line that is not a
// JSON object fails the fetch.
func (s *JSONL[T]) Fetch(ctx context.Context) ([]T, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	d := &decoder[T]{mapping: s.mapping, logger: s.logger, origin: s.path}
	var out []T

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // cancellation passes through
		}
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		r, err := row.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = d.decode(r, line, out)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return d.done(out), nil
}
