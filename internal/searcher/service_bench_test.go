package searcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/validator"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
)

func benchService(b *testing.B, n int) *Service {
	b.Helper()
	docs := make([]document.Document, 0, n)
	kinds := []document.Kind{document.KindDocument, document.KindTask, document.KindFile}
	for i := range n {
		docs = append(docs, document.Document{
			ID:          fmt.Sprintf("doc-%d", i),
			Title:       fmt.Sprintf("Budget review %d", i),
			Description: "finance planning notes for the quarterly meeting",
			Keywords:    []string{"finance", "budget", "planning"},
			OwnerID:     fmt.Sprintf("user-%d", i%10),
			Visibility:  document.VisibilityPublic,
			Kind:        kinds[i%len(kinds)],
			CreatedAt:   time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	idx := index.New()
	b.Cleanup(idx.Shutdown)
	if _, err := idx.BuildFull(context.Background(), docs, 0); err != nil {
		b.Fatal(err)
	}
	cfg := config.Default().Search
	return New(idx, enhancer.New(), executor.New(cfg), visibility, cfg)
}

func BenchmarkSearch(b *testing.B) {
	cfg := config.Default().Search
	for _, st := range []string{"text", "semantic", "hybrid"} {
		opts, err := validator.Parse(validator.Request{Query: "budget review", SearchType: st}, cfg)
		if err != nil {
			b.Fatal(err)
		}
		for _, n := range []int{100, 1000} {
			svc := benchService(b, n)
			b.Run(fmt.Sprintf("%s/docs_%d", st, n), func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					if _, err := svc.Search(context.Background(), "budget review", opts, "user-1"); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
