package domain

import (
	"context"
	"sync"
	"testing"
)

func TestEmbeddingUsage_NilSafe(t *testing.T) {
	UsageFromContext(context.Background()).AddTokens(5)
}

func TestEmbeddingUsage_Concurrent(t *testing.T) {
	ctx, usage := NewContextWithUsage(context.Background())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).AddTokens(3)
		}()
	}
	wg.Wait()

	if usage.TotalTokens != 24 || usage.Calls != 8 || !usage.Used {
		t.Errorf("usage = %d tokens / %d calls / used=%v", usage.TotalTokens, usage.Calls, usage.Used)
	}
}

func TestEmbeddingUsage_CacheHitCountsAsUsed(t *testing.T) {
	ctx, usage := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).AddTokens(0)
	if !usage.Used || usage.TotalTokens != 0 {
		t.Errorf("usage = %+v", usage)
	}
}
