package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/db/sqlite"
	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/row"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
)

// --- mocks ---

type mockPager struct {
	pages   [][]*row.Row
	pageErr error
	closed  bool
}

func (p *mockPager) More() bool { return len(p.pages) > 0 || p.pageErr != nil }

func (p *mockPager) NextPage(_ context.Context) ([]*row.Row, error) {
	if len(p.pages) == 0 {
		err := p.pageErr
		p.pageErr = nil
		return nil, err
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, nil
}

func (p *mockPager) Close() error {
	p.closed = true
	return nil
}

type mockQuerier struct {
	pager *mockPager
	err   error

	calls     int
	container string
	text      string
	params    []db.Param
}

func (m *mockQuerier) Query(_ context.Context, container, text string, params []db.Param) (db.Pager, error) {
	m.calls++
	m.container = container
	m.text = text
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return m.pager, nil
}

func scoredRow(doc string, score any) *row.Row {
	r := row.New()
	r.Set("c", doc)
	r.Set("SummaryEmbedding_Score", 0.0)
	r.Set("TittleEmbedding_Score", 0.0)
	if score != nil {
		r.Set(CombinedScoreColumn, score)
	}
	return r
}

// --- tests ---

func TestSearch_KeepsStoreOrderAcrossPages(t *testing.T) {
	pager := &mockPager{pages: [][]*row.Row{
		{scoredRow(`{"ID":"A"}`, 0.0), scoredRow(`{"ID":"C"}`, 0.3)},
		{scoredRow(`{"ID":"B"}`, 0.7)},
	}}
	q := &mockQuerier{pager: pager}
	s := NewSearcher(q, ticketMapping, zap.NewNop())

	hits, err := s.Search(context.Background(), incidentSpec())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []string{"A", "C", "B"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, id := range want {
		if hits[i].Item.ID != id {
			t.Errorf("hit %d: got %s, want %s", i, hits[i].Item.ID, id)
		}
	}
	if hits[2].Score != 0.7 {
		t.Errorf("score = %v, want 0.7", hits[2].Score)
	}
	if q.container != "incidents" || len(q.params) != 2 {
		t.Errorf("unexpected call: container=%s params=%d", q.container, len(q.params))
	}
	if !pager.closed {
		t.Error("pager not closed")
	}
}

func TestSearch_SkipsBadRows(t *testing.T) {
	pager := &mockPager{pages: [][]*row.Row{{
		scoredRow(`{"ID":"A"}`, 0.1),
		scoredRow(`{"ID":"no-score"}`, nil),
		scoredRow(`{"Title":"no id"}`, 0.2),
		scoredRow(`{"ID":"B"}`, 0.4),
	}}}
	s := NewSearcher(&mockQuerier{pager: pager}, ticketMapping, zap.NewNop())

	hits, err := s.Search(context.Background(), incidentSpec())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].Item.ID != "A" || hits[1].Item.ID != "B" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestSearch_ValidationBeforeQuery(t *testing.T) {
	q := &mockQuerier{pager: &mockPager{}}
	s := NewSearcher(q, ticketMapping, zap.NewNop())

	spec := incidentSpec()
	spec.Weights = map[string]float64{"TittleEmbedding": 1}
	_, err := s.Search(context.Background(), spec)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if q.calls != 0 {
		t.Errorf("store called %d times for an invalid spec", q.calls)
	}
}

func TestSearch_StoreErrors(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("query", func(t *testing.T) {
		s := NewSearcher(&mockQuerier{err: boom}, ticketMapping, zap.NewNop())
		_, err := s.Search(context.Background(), incidentSpec())
		if !errors.Is(err, domain.ErrStore) || !errors.Is(err, boom) {
			t.Fatalf("expected store error wrapping cause, got %v", err)
		}
	})

	t.Run("page", func(t *testing.T) {
		pager := &mockPager{
			pages:   [][]*row.Row{{scoredRow(`{"ID":"A"}`, 0.1)}},
			pageErr: boom,
		}
		s := NewSearcher(&mockQuerier{pager: pager}, ticketMapping, zap.NewNop())
		hits, err := s.Search(context.Background(), incidentSpec())
		if !errors.Is(err, domain.ErrStore) {
			t.Fatalf("expected store error, got %v", err)
		}
		if hits != nil {
			t.Errorf("expected no partial hits, got %d", len(hits))
		}
		if !pager.closed {
			t.Error("pager not closed")
		}
	})
}

func TestSearch_EmptyResult(t *testing.T) {
	s := NewSearcher(&mockQuerier{pager: &mockPager{}}, ticketMapping, zap.NewNop())
	hits, err := s.Search(context.Background(), incidentSpec())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

type incident struct {
	IncidentID string
	Title      string
}

var incidentMapping = row.NewMapping(
	row.String("IncidentId", func(i *incident) *string { return &i.IncidentID }).Require(),
	row.String("Title", func(i *incident) *string { return &i.Title }),
)

func TestSearch_SQLiteWeightedRanking(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(ctx, sqlite.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	spec, err := db.NewContainer("incidents").
		Key("IncidentId").
		String("IncidentId", "Title").
		Vector("TittleEmbedding", 3, db.DistanceCosine, db.IndexQuantizedFlat).
		Vector("SummaryEmbedding", 3, db.DistanceCosine, db.IndexDiskANN).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := store.EnsureContainer(ctx, spec); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}
	err = store.Upsert(ctx, "incidents", []db.Document{
		{Key: "A", Body: []byte(`{"IncidentId":"A","Title":"both match","TittleEmbedding":[1,0,0],"SummaryEmbedding":[0,1,0]}`)},
		{Key: "B", Body: []byte(`{"IncidentId":"B","Title":"summary only","TittleEmbedding":[0,1,0],"SummaryEmbedding":[0,1,0]}`)},
		{Key: "C", Body: []byte(`{"IncidentId":"C","Title":"title only","TittleEmbedding":[1,0,0],"SummaryEmbedding":[1,0,0]}`)},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	s := NewSearcher(store, incidentMapping, zap.NewNop())
	hits, err := s.Search(ctx, &domsearch.Spec{
		Container: "incidents",
		Vectors: map[string][]float32{
			"TittleEmbedding":  {1, 0, 0},
			"SummaryEmbedding": {0, 1, 0},
		},
		Weights: map[string]float64{
			"TittleEmbedding":  0.7,
			"SummaryEmbedding": 0.3,
		},
		MaxResults: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []struct {
		id    string
		score float64
	}{{"A", 0}, {"C", 0.3}, {"B", 0.7}}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, w := range want {
		if hits[i].Item.IncidentID != w.id {
			t.Errorf("hit %d: got %s, want %s", i, hits[i].Item.IncidentID, w.id)
		}
		if math.Abs(hits[i].Score-w.score) > 1e-6 {
			t.Errorf("hit %d: score %v, want %v", i, hits[i].Score, w.score)
		}
	}
	if hits[1].Item.Title != "title only" {
		t.Errorf("document fields not projected: %+v", hits[1].Item)
	}
}

func TestSearch_SQLiteLimitAndFilter(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(ctx, sqlite.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	spec := db.NewContainer("incidents").
		Key("IncidentId").
		String("IncidentId", "Title").
		Vector("TittleEmbedding", 2, db.DistanceCosine, db.IndexFlat).
		MustBuild()
	if err := store.EnsureContainer(ctx, spec); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}
	err = store.Upsert(ctx, "incidents", []db.Document{
		{Key: "1", Body: []byte(`{"IncidentId":"1","Title":"x","TittleEmbedding":[1,0]}`)},
		{Key: "2", Body: []byte(`{"IncidentId":"2","Title":"y","TittleEmbedding":[1,0.1]}`)},
		{Key: "3", Body: []byte(`{"IncidentId":"3","Title":"x","TittleEmbedding":[0,1]}`)},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	s := NewSearcher(store, incidentMapping, zap.NewNop())
	base := func() *domsearch.Spec {
		return &domsearch.Spec{
			Container: "incidents",
			Vectors:   map[string][]float32{"TittleEmbedding": {1, 0}},
			Weights:   map[string]float64{"TittleEmbedding": 1},
		}
	}

	limited := base()
	limited.MaxResults = 2
	hits, err := s.Search(ctx, limited)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].Item.IncidentID != "1" || hits[1].Item.IncidentID != "2" {
		t.Fatalf("unexpected limited hits %+v", hits)
	}

	filtered := base()
	filtered.Filter = "c.Title = 'x'"
	filtered.SelectFields = []string{"c.IncidentId"}
	hits, err = s.Search(ctx, filtered)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].Item.IncidentID != "1" || hits[1].Item.IncidentID != "3" {
		t.Fatalf("unexpected filtered hits %+v", hits)
	}
	if hits[0].Item.Title != "" {
		t.Errorf("unselected field projected: %+v", hits[0].Item)
	}
}
