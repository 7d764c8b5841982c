// Package ingest embeds records in rate-limited batches, reduces their
// vectors over the whole corpus and writes them to the store in one upsert.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/reduce"
	logpkg "github.com/kailas-cloud/incidex/internal/logger"
	"github.com/kailas-cloud/incidex/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultBatchSize        = 16
	DefaultDelay            = 50 * time.Millisecond
	DefaultTargetDimensions = 3
)

// Report summarizes one ingestion run.
type Report struct {
	RunID      string
	Ingested   int
	Batches    int
	Shortfalls map[string]int // items left without a vector, by field
	Reduced    map[string]int // output dimension, by field that got a model
}

// Option configures a Pipeline.
type Option func(*settings)

type settings struct {
	batchSize int
	delay     time.Duration
	targetDim int
	container *db.ContainerSpec
	models    ModelStore
}

// WithBatchSize sets how many items share one bulk embedding call per field.
func WithBatchSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithDelay sets the pause between consecutive batches.
func WithDelay(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithTargetDimensions sets the reduced vector dimension. Zero disables reduction.
func WithTargetDimensions(k int) Option {
	return func(s *settings) {
		if k >= 0 {
			s.targetDim = k
		}
	}
}

// WithContainer sets the container the run writes to.
func WithContainer(spec *db.ContainerSpec) Option {
	return func(s *settings) { s.container = spec }
}

// WithModelStore persists fitted reduction models so queries can be projected later.
func WithModelStore(m ModelStore) Option {
	return func(s *settings) { s.models = m }
}

// Pipeline ingests records of type T.
type Pipeline[T domain.Embeddable] struct {
	embedder domain.BatchEmbedder
	store    Store
	encode   func(T) ([]byte, error)
	logger   *zap.Logger
	cfg      settings

	wait func(ctx context.Context, d time.Duration) error
}

// New creates a pipeline. encode renders one record as the stored JSON document.
func New[T domain.Embeddable](
	embedder domain.BatchEmbedder, store Store, encode func(T) ([]byte, error),
	logger *zap.Logger, opts ...Option,
) *Pipeline[T] {
	cfg := settings{
		batchSize: DefaultBatchSize,
		delay:     DefaultDelay,
		targetDim: DefaultTargetDimensions,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pipeline[T]{
		embedder: embedder,
		store:    store,
		encode:   encode,
		logger:   logger,
		cfg:      cfg,
		wait:     sleep,
	}
}

// Ingest embeds, reduces and stores items. Items are mutated in place.
// A provider failure aborts the run before anything is written.
func (p *Pipeline[T]) Ingest(ctx context.Context, items []T) (Report, error) {
	report := Report{
		RunID:      uuid.NewString(),
		Shortfalls: make(map[string]int),
		Reduced:    make(map[string]int),
	}
	if p.cfg.container == nil {
		return report, domain.NewValidationError("container", "container spec is required")
	}
	container := p.cfg.container.Name
	log := logpkg.FromContextOr(ctx, p.logger).With(
		zap.String("run_id", report.RunID),
		zap.String("container", container),
	)

	if len(items) == 0 {
		log.Info("Nothing to ingest")
		return report, nil
	}

	fieldNames, err := embeddingFieldNames(items)
	if err != nil {
		return report, err
	}

	start := time.Now()
	err = p.run(ctx, log, items, fieldNames, &report)
	metrics.IngestDuration.WithLabelValues(container).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues(container, "error").Inc()
		log.Error("Ingestion failed", zap.Error(err))
		return report, err
	}

	metrics.IngestRunsTotal.WithLabelValues(container, "success").Inc()
	metrics.IngestItemsTotal.WithLabelValues(container).Add(float64(report.Ingested))
	log.Info("Ingestion completed",
		zap.Int("ingested", report.Ingested),
		zap.Int("batches", report.Batches),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func (p *Pipeline[T]) run(ctx context.Context, log *zap.Logger, items []T, fieldNames []string, report *Report) error {
	for start := 0; start < len(items); start += p.cfg.batchSize {
		if start > 0 {
			if err := p.wait(ctx, p.cfg.delay); err != nil {
				return fmt.Errorf("wait between batches: %w", err)
			}
		}
		end := min(start+p.cfg.batchSize, len(items))
		if err := p.embedBatch(ctx, log, items[start:end], fieldNames, report); err != nil {
			return fmt.Errorf("batch %d: %w", report.Batches, err)
		}
		report.Batches++
	}

	models := make([]*reduce.Model, len(fieldNames))
	for f, name := range fieldNames {
		model, err := p.reduceField(log, items, f, name, report)
		if err != nil {
			return err
		}
		models[f] = model
	}

	docs := make([]db.Document, len(items))
	for i, item := range items {
		body, err := p.encode(item)
		if err != nil {
			return fmt.Errorf("encode %q: %w", item.Key(), err)
		}
		docs[i] = db.Document{Key: item.Key(), Body: body}
	}

	if err := p.store.EnsureContainer(ctx, p.cfg.container); err != nil {
		return domain.NewStoreError("ensure container", err)
	}
	if err := p.store.Upsert(ctx, p.cfg.container.Name, docs); err != nil {
		return domain.NewStoreError("upsert", err)
	}
	report.Ingested = len(docs)

	return p.commitModels(ctx, log, fieldNames, models)
}

// commitModels stores the models fitted in this run once the documents they
// produced are written. A field left unreduced drops any model from an
// earlier run so queries stay in the stored space.
func (p *Pipeline[T]) commitModels(ctx context.Context, log *zap.Logger, fieldNames []string, models []*reduce.Model) error {
	if p.cfg.models == nil {
		return nil
	}
	container := p.cfg.container.Name
	for f, name := range fieldNames {
		if models[f] == nil {
			if err := p.cfg.models.Delete(ctx, container, name); err != nil {
				return domain.NewStoreError("delete model", err)
			}
			continue
		}
		if err := p.cfg.models.Save(ctx, container, name, models[f]); err != nil {
			return domain.NewStoreError("save model", err)
		}
		log.Debug("Reduction model saved", zap.String("field", name), zap.Int("k", models[f].K()))
	}
	return nil
}

// embedBatch issues one bulk call per field concurrently and assigns the
// returned vectors positionally once every call has finished.
func (p *Pipeline[T]) embedBatch(ctx context.Context, log *zap.Logger, batch []T, fieldNames []string, report *Report) error {
	fields := make([][]domain.EmbeddingField, len(batch))
	for i, item := range batch {
		fields[i] = item.EmbeddingFields()
	}

	results := make([]domain.BatchEmbeddingResult, len(fieldNames))
	g, gctx := errgroup.WithContext(ctx)
	for f := range fieldNames {
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = fields[i][f].Text
		}
		g.Go(func() error {
			res, err := p.embedder.BatchEmbed(gctx, texts)
			if err != nil {
				return fmt.Errorf("%w: field %s: %w", domain.ErrEmbeddingProviderError, fieldNames[f], err)
			}
			domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
			results[f] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck // wrapped inside the group
	}

	container := p.cfg.container.Name
	for f, name := range fieldNames {
		vecs := results[f].Embeddings
		n := min(len(vecs), len(batch))
		for i := 0; i < n; i++ {
			fields[i][f].Set(vecs[i])
		}
		if short := results[f].Shortfall(len(batch)); short > 0 {
			report.Shortfalls[name] += short
			metrics.IngestShortfallsTotal.WithLabelValues(container, name).Add(float64(short))
			log.Warn("Partial embedding shortfall",
				zap.String("field", name),
				zap.Int("requested", len(batch)),
				zap.Int("returned", len(vecs)),
			)
		}
	}
	return nil
}

// reduceField fits one model over every item carrying field f and projects
// those vectors in place. It returns nil when reduction is skipped.
func (p *Pipeline[T]) reduceField(
	log *zap.Logger, items []T, f int, name string, report *Report,
) (*reduce.Model, error) {
	var (
		carriers []domain.EmbeddingField
		vectors  [][]float32
	)
	for _, item := range items {
		field := item.EmbeddingFields()[f]
		if v := field.Get(); len(v) > 0 {
			carriers = append(carriers, field)
			vectors = append(vectors, v)
		}
	}

	model, err := reduce.Fit(vectors, p.cfg.targetDim)
	if err != nil {
		return nil, fmt.Errorf("reduce %s: %w", name, err)
	}
	if model == nil {
		log.Debug("Reduction skipped",
			zap.String("field", name),
			zap.Int("vectors", len(vectors)),
			zap.Int("target_dim", p.cfg.targetDim),
		)
		return nil, nil
	}

	projected, err := model.ProjectAll(vectors)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", name, err)
	}
	for i, field := range carriers {
		field.Set(projected[i])
	}
	report.Reduced[name] = model.K()

	log.Debug("Field reduced",
		zap.String("field", name),
		zap.Int("from", model.Dim()),
		zap.Int("to", model.K()),
	)
	return model, nil
}

func embeddingFieldNames[T domain.Embeddable](items []T) ([]string, error) {
	first := items[0].EmbeddingFields()
	names := make([]string, len(first))
	for i, f := range first {
		names[i] = f.Name
	}
	if len(names) == 0 {
		return nil, domain.NewValidationError("fields", "record declares no embedding fields")
	}

	for _, item := range items {
		if item.Key() == "" {
			return nil, domain.NewValidationError("key", "record key cannot be empty")
		}
		fields := item.EmbeddingFields()
		if len(fields) != len(names) {
			return nil, domain.NewValidationError(item.Key(), "embedding fields differ between records")
		}
		for i, f := range fields {
			if f.Name != names[i] {
				return nil, domain.NewValidationError(item.Key(), "embedding field order differs between records")
			}
		}
	}
	return names, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err() //nolint:wrapcheck // caller wraps
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller wraps
	case <-t.C:
		return nil
	}
}
