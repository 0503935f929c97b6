package index

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
)

var benchKeywords = [][]string{
	{"finance", "budget"},
	{"travel", "flights"},
	{"meeting", "schedule"},
	{"hiring", "people"},
	{"roadmap", "product"},
}

func benchCorpus(n int) []document.Document {
	docs := make([]document.Document, n)
	now := time.Now()
	for i := range n {
		docs[i] = document.Document{
			ID:          fmt.Sprintf("doc-%d", i),
			Title:       fmt.Sprintf("Quarterly report %d", i),
			Description: "notes on budget travel and hiring for the planning review",
			Keywords:    benchKeywords[i%len(benchKeywords)],
			OwnerID:     "owner",
			Visibility:  document.VisibilityPublic,
			CreatedAt:   now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return docs
}

func benchSnapshot(b *testing.B, n int) *Snapshot {
	b.Helper()
	idx := New()
	b.Cleanup(idx.Shutdown)
	if _, err := idx.BuildFull(context.Background(), benchCorpus(n), 0); err != nil {
		b.Fatal(err)
	}
	snap, err := idx.Snapshot()
	if err != nil {
		b.Fatal(err)
	}
	return snap
}

func BenchmarkBuildFull(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		docs := benchCorpus(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			idx := New()
			defer idx.Shutdown()
			b.ReportAllocs()
			for b.Loop() {
				if _, err := idx.BuildFull(context.Background(), docs, 0); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkUpsert(b *testing.B) {
	idx := New()
	defer idx.Shutdown()
	if _, err := idx.BuildFull(context.Background(), benchCorpus(1000), 0); err != nil {
		b.Fatal(err)
	}
	doc := benchCorpus(1)[0]
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		doc.Title = fmt.Sprintf("Revised report %d", i)
		i++
		if _, err := idx.Upsert(doc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLexicalCandidates(b *testing.B) {
	snap := benchSnapshot(b, 5000)
	terms := tokenizer.Terms("quarterly budget report")
	b.ReportAllocs()
	for b.Loop() {
		_ = snap.LexicalCandidates(terms)
	}
}

func BenchmarkSemanticCandidates(b *testing.B) {
	snap := benchSnapshot(b, 5000)
	query := DocumentVector([]string{"finance", "budget", "money"})
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = snap.SemanticCandidates(query, 0.3, 20)
		}
	})
}
