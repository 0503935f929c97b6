// Package ranker applies the additive relevance boosts to fused candidates
// and orders and pages the scored results.
package ranker

import (
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
)

// Breakdown explains how a relevance score was assembled.
type Breakdown struct {
	BaseScore       float64 `json:"baseScore"`
	TitleMatches    int     `json:"titleMatches"`
	KeywordMatches  int     `json:"keywordMatches"`
	EntityMatches   int     `json:"entityMatches"`
	PersonalMatches int     `json:"personalMatches"`
	TitleBoost      float64 `json:"titleBoost"`
	KeywordBoost    float64 `json:"keywordBoost"`
	EntityBoost     float64 `json:"entityBoost"`
	FreshnessScore  float64 `json:"freshnessScore"`
	PersonalBoost   float64 `json:"personalBoost"`
}

type ScoredResult struct {
	merger.Fused
	RelevanceScore float64
	Breakdown      Breakdown
}

type Scorer struct {
	boosts config.BoostConfig
	now    func() time.Time
}

func NewScorer(boosts config.BoostConfig) *Scorer {
	return &Scorer{boosts: boosts, now: time.Now}
}

// Score applies the title, keyword, entity, freshness and (optionally)
// personal boosts. Each boost is capped on its own and the total is
// clamped to [0,1].
func (s *Scorer) Score(q *enhancer.EnhancedQuery, f merger.Fused, personalize bool) ScoredResult {
	e := f.Entry
	bd := Breakdown{BaseScore: f.BaseScore}

	for _, term := range q.ExpandedTerms {
		if _, ok := e.Title[term]; ok {
			bd.TitleMatches++
		}
		if _, ok := e.Keywords[term]; ok {
			bd.KeywordMatches++
		}
	}
	for _, key := range q.EntityKeys() {
		if _, ok := e.Entities[key]; ok {
			bd.EntityMatches++
		}
	}
	if personalize {
		for _, term := range q.PersonalTerms {
			if _, ok := e.Keywords[term]; ok {
				bd.PersonalMatches++
			}
		}
	}

	b := s.boosts
	bd.TitleBoost = capped(b.TitlePerMatch*float64(bd.TitleMatches), b.TitleCap)
	bd.KeywordBoost = capped(b.KeywordPerMatch*float64(bd.KeywordMatches), b.KeywordCap)
	bd.EntityBoost = capped(b.EntityPerMatch*float64(bd.EntityMatches), b.EntityCap)
	bd.PersonalBoost = capped(b.PersonalPerHit*float64(bd.PersonalMatches), b.PersonalCap)
	bd.FreshnessScore = s.freshness(e.Doc.CreatedAt)

	total := f.BaseScore + bd.TitleBoost + bd.KeywordBoost + bd.EntityBoost + bd.FreshnessScore + bd.PersonalBoost
	return ScoredResult{
		Fused:          f,
		RelevanceScore: clamp01(total),
		Breakdown:      bd,
	}
}

// ScoreAll scores every fused candidate.
func (s *Scorer) ScoreAll(q *enhancer.EnhancedQuery, fused []merger.Fused, personalize bool) []ScoredResult {
	out := make([]ScoredResult, len(fused))
	for i, f := range fused {
		out[i] = s.Score(q, f, personalize)
	}
	return out
}

// freshness decays linearly to zero over the window. Unset dates earn
// nothing; future dates count as brand new.
func (s *Scorer) freshness(created time.Time) float64 {
	if created.IsZero() || s.boosts.FreshnessWindow <= 0 {
		return 0
	}
	age := max(0, s.now().Sub(created))
	return s.boosts.FreshnessMax * math.Max(0, 1-float64(age)/float64(s.boosts.FreshnessWindow))
}

func capped(v, limit float64) float64 {
	return math.Min(v, limit)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
