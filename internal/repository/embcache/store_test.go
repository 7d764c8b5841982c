package embcache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/db/sqlite"
	"github.com/kailas-cloud/incidex/internal/db/valkey"
	"github.com/kailas-cloud/incidex/internal/domain"
)

// Both KV backends the binary can wire must round-trip cached vectors.
func TestCachedEmbedder_RealBackends(t *testing.T) {
	ctx := context.Background()

	lite, err := sqlite.NewStore(ctx, sqlite.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(lite.Close)

	mr := miniredis.RunT(t)
	vk, err := valkey.NewStore(valkey.Config{Addrs: []string{mr.Addr()}})
	if err != nil {
		t.Fatalf("valkey: %v", err)
	}
	t.Cleanup(vk.Close)

	backends := map[string]store{"sqlite": lite, "valkey": vk}
	for name, kv := range backends {
		t.Run(name, func(t *testing.T) {
			inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.25, -1, 3}, TotalTokens: 4}}
			first := New(inner, kv, nil, zap.NewNop())

			if _, err := first.BatchEmbed(ctx, []string{"disk full", "cpu spike"}); err != nil {
				t.Fatalf("BatchEmbed: %v", err)
			}
			if inner.batchCalls != 1 {
				t.Fatalf("batch calls = %d, want 1", inner.batchCalls)
			}

			// a fresh decorator over the same backend answers from cache
			second := New(inner, kv, nil, zap.NewNop())
			res, err := second.BatchEmbed(ctx, []string{"cpu spike", "disk full"})
			if err != nil {
				t.Fatalf("BatchEmbed: %v", err)
			}
			if inner.batchCalls != 1 {
				t.Errorf("provider called again: %d calls", inner.batchCalls)
			}
			if len(res.Embeddings) != 2 || res.Embeddings[1][2] != 3 || res.TotalTokens != 0 {
				t.Errorf("cached result = %+v", res)
			}
		})
	}
}
