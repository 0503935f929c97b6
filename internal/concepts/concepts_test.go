package concepts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
)

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func guardConfig() config.ConceptsConfig {
	return config.ConceptsConfig{Timeout: 50 * time.Millisecond, FailureThreshold: 2, ResetTimeout: time.Minute}
}

func TestLLMExtractorParsesReply(t *testing.T) {
	m := &fakeModel{reply: "```json\n{\"intent\":\"Schedule\",\"entities\":[{\"type\":\"person\",\"name\":\"Dana\"}]}\n```"}
	got, err := NewLLMExtractorWithModel(m).Analyze(context.Background(), "meetings with Dana")
	require.NoError(t, err)
	assert.Equal(t, IntentSchedule, got.Intent)
	assert.Equal(t, []document.Entity{{Type: "person", Name: "Dana"}}, got.Entities)
}

func TestLLMExtractorRejectsMalformed(t *testing.T) {
	m := &fakeModel{reply: "Sure! The intent is task."}
	_, err := NewLLMExtractorWithModel(m).Analyze(context.Background(), "todo")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLLMExtractorUnknownIntentIsGeneral(t *testing.T) {
	m := &fakeModel{reply: `{"intent":"shopping","entities":[]}`}
	got, err := NewLLMExtractorWithModel(m).Analyze(context.Background(), "shoes")
	require.NoError(t, err)
	assert.Equal(t, IntentGeneral, got.Intent)
}

func TestGuardedFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		ext     Extractor
		outcome string
	}{
		{"disabled", nil, "disabled"},
		{"error", Func(func(context.Context, string) (Analysis, error) {
			return Analysis{}, errors.New("503 from upstream")
		}), "error"},
		{"timeout", Func(func(ctx context.Context, _ string) (Analysis, error) {
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			return Analysis{Intent: IntentTask}, nil
		}), "timeout"},
		{"panic", Func(func(context.Context, string) (Analysis, error) {
			panic("bad")
		}), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewWithRegistry(prometheus.NewRegistry())
			g := NewGuarded(tt.ext, guardConfig(), m)

			res := g.Analyze(context.Background(), "anything")
			assert.False(t, res.OK())
			assert.Equal(t, Fallback(), res.OrFallback())
			assert.Equal(t, IntentGeneral, res.Value.Intent)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.ConceptCallsTotal.WithLabelValues(tt.outcome)))
		})
	}
}

func TestGuardedOpensCircuit(t *testing.T) {
	calls := 0
	g := NewGuarded(Func(func(context.Context, string) (Analysis, error) {
		calls++
		return Analysis{}, errors.New("down")
	}), guardConfig(), nil)

	for i := 0; i < 5; i++ {
		g.Analyze(context.Background(), "q")
	}
	assert.Equal(t, 2, calls)
}

func TestGuardedNormalizesSuccess(t *testing.T) {
	g := NewGuarded(Func(func(context.Context, string) (Analysis, error) {
		return Analysis{Intent: "bogus", Entities: []document.Entity{{Type: " Person ", Name: " Dana "}, {Name: "  "}}}, nil
	}), guardConfig(), nil)

	res := g.Analyze(context.Background(), "q")
	require.True(t, res.OK())
	assert.Equal(t, IntentGeneral, res.Value.Intent)
	assert.Equal(t, []document.Entity{{Type: "person", Name: "Dana"}}, res.Value.Entities)
}

func TestIntentDocumentKind(t *testing.T) {
	k, ok := IntentTask.DocumentKind()
	assert.True(t, ok)
	assert.Equal(t, document.KindTask, k)

	_, ok = IntentGeneral.DocumentKind()
	assert.False(t, ok)
	_, ok = IntentSearch.DocumentKind()
	assert.False(t, ok)
}
