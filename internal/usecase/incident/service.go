// Package incident ingests incidents from the upstream source and finds
// incidents similar to a template incident.
package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain"
	dominc "github.com/kailas-cloud/incidex/internal/domain/incident"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
	"github.com/kailas-cloud/incidex/internal/source"
	"github.com/kailas-cloud/incidex/internal/usecase/ingest"
	"github.com/kailas-cloud/incidex/internal/usecase/search"
)

// Defaults used when Settings or request fields are left zero.
const (
	DefaultContainer     = "incidents"
	DefaultTitleWeight   = 0.7
	DefaultSummaryWeight = 0.3
	DefaultMaxResults    = 5
	DefaultDimensions    = 3
)

// Settings tunes ingestion and search.
type Settings struct {
	Container        string
	Dimensions       int // declared vector dimension of the container
	BatchSize        int
	Delay            time.Duration
	TargetDimensions int
	TitleWeight      float64
	SummaryWeight    float64
	MaxResults       int
}

// SimilarParams describes a search for incidents similar to a template.
type SimilarParams struct {
	Incident      *dominc.Incident
	Container     string
	TitleWeight   *float64
	SummaryWeight *float64
	MaxResults    int
	Filter        string
}

// SimilarResult holds the ranked hits of a similarity search.
type SimilarResult struct {
	Source dominc.Incident
	Hits   []domsearch.Hit[dominc.Incident]
}

// Service is the incident application service.
type Service struct {
	source   source.Source[dominc.Incident]
	embedder domain.EmbeddingProvider
	query    domain.EmbeddingProvider
	store    Store
	models   ModelRepo
	searcher *search.Searcher[dominc.Incident]
	settings Settings
	logger   *zap.Logger
}

// New creates the service. models may be nil, in which case no reduction
// models are saved and query vectors are used as embedded.
func New(
	src source.Source[dominc.Incident], embedder domain.EmbeddingProvider,
	store Store, models ModelRepo, settings Settings, logger *zap.Logger,
) *Service {
	if settings.Container == "" {
		settings.Container = DefaultContainer
	}
	if settings.Dimensions <= 0 {
		settings.Dimensions = DefaultDimensions
	}
	if settings.MaxResults <= 0 {
		settings.MaxResults = DefaultMaxResults
	}
	if settings.TitleWeight == 0 && settings.SummaryWeight == 0 {
		settings.TitleWeight = DefaultTitleWeight
		settings.SummaryWeight = DefaultSummaryWeight
	}
	return &Service{
		source:   src,
		embedder: embedder,
		query:    embedder,
		store:    store,
		models:   models,
		searcher: search.NewSearcher(store, dominc.Mapping, logger),
		settings: settings,
		logger:   logger,
	}
}

// WithQueryEmbedder sets the embedder used for search texts. It defaults to
// the ingestion embedder.
func (s *Service) WithQueryEmbedder(e domain.EmbeddingProvider) *Service {
	if e != nil {
		s.query = e
	}
	return s
}

// ContainerSpec declares the incident container with vectors of dims.
func ContainerSpec(name string, dims int) (*db.ContainerSpec, error) {
	spec, err := db.NewContainer(name).
		Key(dominc.KeyColumn).
		String(dominc.KeyColumn, "Status", "OwningTeamName", "OwningContactAlias", "OwningContactName",
			"TsgId", "ResolveDate", "ResolvedBy", dominc.TitleColumn, "Mitigation", "MitigateDate",
			"MitigatedBy", "HowFixed", dominc.SummaryColumn).
		Number("Severity").
		Vector(dominc.TitleEmbeddingColumn, dims, db.DistanceCosine, db.IndexQuantizedFlat).
		Vector(dominc.SummaryEmbeddingColumn, dims, db.DistanceCosine, db.IndexDiskANN).
		Build()
	if err != nil {
		return nil, domain.NewValidationError("container", err.Error())
	}
	return spec, nil
}

// Ingest fetches all incidents from the source and ingests them into container.
// An empty source yields a zero report.
func (s *Service) Ingest(ctx context.Context, container string) (ingest.Report, error) {
	if container == "" {
		container = s.settings.Container
	}
	spec, err := ContainerSpec(container, s.settings.Dimensions)
	if err != nil {
		return ingest.Report{}, err
	}

	items, err := s.source.Fetch(ctx)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("fetch incidents: %w", err)
	}
	if len(items) == 0 {
		s.logger.Info("No incidents found in source", zap.String("container", container))
		return ingest.Report{}, nil
	}

	opts := []ingest.Option{
		ingest.WithContainer(spec),
		ingest.WithBatchSize(s.settings.BatchSize),
		ingest.WithDelay(s.settings.Delay),
		ingest.WithTargetDimensions(s.settings.TargetDimensions),
	}
	if s.models != nil {
		opts = append(opts, ingest.WithModelStore(s.models))
	}
	p := ingest.New[*dominc.Incident](s.embedder, s.store, dominc.Encode, s.logger, opts...)
	return p.Ingest(ctx, dominc.Pointers(items))
}

// SearchSimilar ranks stored incidents by weighted title and summary distance
// to the template incident. A template with only one of the two texts
// searches that field alone.
func (s *Service) SearchSimilar(ctx context.Context, params SimilarParams) (*SimilarResult, error) {
	if params.Incident == nil {
		return nil, domain.NewValidationError("incident", "incident is required")
	}
	tmpl := params.Incident
	if strings.TrimSpace(tmpl.Title) == "" && strings.TrimSpace(tmpl.Summary) == "" {
		return nil, domain.NewValidationError("incident", "title or summary is required")
	}

	container := params.Container
	if container == "" {
		container = s.settings.Container
	}
	titleWeight := s.settings.TitleWeight
	if params.TitleWeight != nil {
		titleWeight = *params.TitleWeight
	}
	summaryWeight := s.settings.SummaryWeight
	if params.SummaryWeight != nil {
		summaryWeight = *params.SummaryWeight
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = s.settings.MaxResults
	}

	var fields, texts []string
	weights := make(map[string]float64, 2)
	if strings.TrimSpace(tmpl.Title) != "" {
		fields = append(fields, dominc.TitleEmbeddingColumn)
		texts = append(texts, tmpl.Title)
		weights[dominc.TitleEmbeddingColumn] = titleWeight
	}
	if strings.TrimSpace(tmpl.Summary) != "" {
		fields = append(fields, dominc.SummaryEmbeddingColumn)
		texts = append(texts, tmpl.Summary)
		weights[dominc.SummaryEmbeddingColumn] = summaryWeight
	}

	vectors, err := s.queryVectors(ctx, container, fields, texts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Searching similar incidents",
		zap.String("container", container),
		zap.String("title", tmpl.Title),
		zap.Int("max_results", maxResults),
	)
	hits, err := s.searcher.Search(ctx, &domsearch.Spec{
		Container:  container,
		Vectors:    vectors,
		Weights:    weights,
		Filter:     params.Filter,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // typed search errors pass through
	}
	return &SimilarResult{Source: *tmpl, Hits: hits}, nil
}

// SearchText embeds text and ranks incidents by a single vector field.
// field is "title", "summary" or a vector column name.
func (s *Service) SearchText(
	ctx context.Context, container, field, text string, limit int,
) ([]domsearch.Hit[dominc.Incident], error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewValidationError("q", "query text is required")
	}
	column, err := vectorColumn(field)
	if err != nil {
		return nil, err
	}
	if container == "" {
		container = s.settings.Container
	}
	if limit <= 0 {
		limit = s.settings.MaxResults
	}

	vectors, err := s.queryVectors(ctx, container, []string{column}, []string{text})
	if err != nil {
		return nil, err
	}
	return s.searcher.Search(ctx, &domsearch.Spec{ //nolint:wrapcheck // typed search errors pass through
		Container:  container,
		Vectors:    vectors,
		Weights:    map[string]float64{column: 1},
		MaxResults: limit,
	})
}

// queryVectors embeds texts in one call and maps each vector into the
// stored space of its field.
func (s *Service) queryVectors(ctx context.Context, container string, fields, texts []string) (map[string][]float32, error) {
	res, err := s.query.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	if short := res.Shortfall(len(texts)); short > 0 {
		return nil, fmt.Errorf("embed query: %w: %d of %d vectors missing",
			domain.ErrEmbeddingProviderError, short, len(texts))
	}

	vectors := make(map[string][]float32, len(fields))
	for i, field := range fields {
		vec, err := s.project(ctx, container, field, res.Embeddings[i])
		if err != nil {
			return nil, err
		}
		vectors[field] = vec
	}
	return vectors, nil
}

func (s *Service) project(ctx context.Context, container, field string, vec []float32) ([]float32, error) {
	if s.models == nil {
		return vec, nil
	}
	model, err := s.models.Load(ctx, container, field)
	if errors.Is(err, domain.ErrNotFound) {
		return vec, nil
	}
	if err != nil {
		return nil, domain.NewStoreError("load model", err)
	}
	out, err := model.Project(vec)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w: %w", field, domain.ErrVectorDimMismatch, err)
	}
	return out, nil
}

func vectorColumn(field string) (string, error) {
	switch strings.ToLower(field) {
	case "", "title", strings.ToLower(dominc.TitleEmbeddingColumn):
		return dominc.TitleEmbeddingColumn, nil
	case "summary", strings.ToLower(dominc.SummaryEmbeddingColumn):
		return dominc.SummaryEmbeddingColumn, nil
	default:
		return "", domain.NewValidationError("field", fmt.Sprintf("unknown field %q, want title or summary", field))
	}
}
