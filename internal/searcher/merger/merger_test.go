package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
)

func text(id string, score float64) executor.Candidate {
	return executor.Candidate{DocID: id, TextScore: score, Types: []executor.SearchType{executor.SearchText}}
}

func semantic(id string, score float64) executor.Candidate {
	return executor.Candidate{DocID: id, SemanticScore: score, Types: []executor.SearchType{executor.SearchSemantic}}
}

func TestFuse(t *testing.T) {
	fused := Fuse(&executor.Retrieval{
		Text:     []executor.Candidate{text("both", 0.8), text("lexical", 0.6)},
		Semantic: []executor.Candidate{semantic("both", 0.4), semantic("concept", 0.35)},
	})
	require.Len(t, fused, 3)

	byID := make(map[string]Fused)
	for _, f := range fused {
		byID[f.DocID] = f
	}

	assert.InDelta(t, 0.6, byID["both"].BaseScore, 1e-9)
	assert.ElementsMatch(t, []executor.SearchType{executor.SearchText, executor.SearchSemantic}, byID["both"].Types)
	assert.InDelta(t, 0.8, byID["both"].TextScore, 1e-9)
	assert.InDelta(t, 0.4, byID["both"].SemanticScore, 1e-9)

	assert.InDelta(t, 0.6, byID["lexical"].BaseScore, 1e-9, "single-branch score is not averaged with zero")
	assert.InDelta(t, 0.35, byID["concept"].BaseScore, 1e-9)
	assert.Zero(t, byID["concept"].TextScore)
}

func TestFuseOrdersByID(t *testing.T) {
	fused := Fuse(&executor.Retrieval{
		Text: []executor.Candidate{text("c", 0.1), text("a", 0.2), text("b", 0.3)},
	})
	ids := []string{fused[0].DocID, fused[1].DocID, fused[2].DocID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFuseEmpty(t *testing.T) {
	assert.Empty(t, Fuse(&executor.Retrieval{}))
	assert.Nil(t, Fuse(nil))
}
