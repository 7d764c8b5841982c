package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/domain/row"
)

type ticket struct {
	ID       string
	Title    string
	Severity int
}

var ticketMapping = row.NewMapping(
	row.String("ID", func(t *ticket) *string { return &t.ID }).Require(),
	row.String("Title", func(t *ticket) *string { return &t.Title }),
	row.Int("Severity", func(t *ticket) *int { return &t.Severity }),
)

func TestSQL_Fetch(t *testing.T) {
	conn, err := OpenSQL(":memory:")
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	conn.SetMaxOpenConns(1)
	defer conn.Close()

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE tickets (ID TEXT, Title TEXT, Severity INTEGER, Extra TEXT)`,
		`INSERT INTO tickets VALUES ('T-1', 'disk full', 2, 'x')`,
		`INSERT INTO tickets VALUES (NULL, 'orphan', 1, NULL)`,
		`INSERT INTO tickets VALUES ('T-2', NULL, '3', NULL)`,
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	src := NewSQL(conn, `SELECT ID, Title, Severity, Extra FROM tickets ORDER BY rowid`, ticketMapping, zap.NewNop())
	got, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// NULL ID decodes to "" which the mapping accepts; the record keeps its empty key.
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].ID != "T-1" || got[0].Title != "disk full" || got[0].Severity != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[2].ID != "T-2" || got[2].Title != "" || got[2].Severity != 3 {
		t.Errorf("third = %+v", got[2])
	}
}

func TestSQL_SkipsUndecodableRows(t *testing.T) {
	conn, err := OpenSQL(":memory:")
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	conn.SetMaxOpenConns(1)
	defer conn.Close()

	ctx := context.Background()
	if _, err := conn.ExecContext(ctx,
		`CREATE TABLE t (ID TEXT, Severity TEXT);
		 INSERT INTO t VALUES ('a', 'high'), ('b', '1');`); err != nil {
		t.Fatalf("exec: %v", err)
	}

	got, err := NewSQL(conn, `SELECT ID, Severity FROM t ORDER BY ID`, ticketMapping, zap.NewNop()).Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("unexpected records %+v", got)
	}
}

func TestSQL_Errors(t *testing.T) {
	conn, err := OpenSQL(":memory:")
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer conn.Close()

	if _, err := NewSQL(conn, "", ticketMapping, zap.NewNop()).Fetch(context.Background()); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := NewSQL(conn, "SELECT * FROM missing", ticketMapping, zap.NewNop()).Fetch(context.Background()); err == nil {
		t.Error("expected error for missing table")
	}
	if _, err := OpenSQL(""); err == nil {
		t.Error("expected error for empty dsn")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickets.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestJSONL_Fetch(t *testing.T) {
	path := writeFile(t, strings.Join([]string{
		`{"ID":"T-1","Title":"disk full","Severity":2}`,
		``,
		`{"Title":"no id"}`,
		`  {"ID":"T-2","Severity":"4"}  `,
	}, "\n"))

	got, err := NewJSONL(path, ticketMapping, zap.NewNop()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].Title != "disk full" || got[1].ID != "T-2" || got[1].Severity != 4 {
		t.Errorf("unexpected records %+v", got)
	}
}

func TestJSONL_Errors(t *testing.T) {
	path := writeFile(t, "{\"ID\":\"a\"}\n[1,2]\n")
	_, err := NewJSONL(path, ticketMapping, zap.NewNop()).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 error, got %v", err)
	}

	_, err = NewJSONL(filepath.Join(t.TempDir(), "missing.jsonl"), ticketMapping, zap.NewNop()).Fetch(context.Background())
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNew(t *testing.T) {
	src, closeFn, err := New(Config{Kind: KindJSONL, Path: writeFile(t, `{"ID":"x"}`)}, ticketMapping, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()
	got, err := src.Fetch(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("Fetch: %v %v", got, err)
	}

	sqlSrc, closeSQL, err := New(Config{Kind: KindSQL, DSN: ":memory:", Query: "SELECT 'y' AS ID"}, ticketMapping, zap.NewNop())
	if err != nil {
		t.Fatalf("New sql: %v", err)
	}
	defer closeSQL()
	got, err = sqlSrc.Fetch(context.Background())
	if err != nil || len(got) != 1 || got[0].ID != "y" {
		t.Fatalf("Fetch sql: %v %v", got, err)
	}

	if _, _, err := New(Config{Kind: "kusto"}, ticketMapping, zap.NewNop()); err == nil {
		t.Error("expected error for unknown kind")
	}
}
