package concepts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/resilience"
)

// Guarded bounds an Extractor with a timeout and a circuit breaker so a
// slow or failing collaborator never holds up a query.
type Guarded struct {
	extractor Extractor
	timeout   time.Duration
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
}

// NewGuarded wraps ext. A nil ext yields a guard that always falls back.
func NewGuarded(ext Extractor, cfg config.ConceptsConfig, m *metrics.Metrics) *Guarded {
	breaker := resilience.NewCircuitBreaker("concept-extractor", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			m.BreakerState(name, int(to))
		},
	})
	return &Guarded{
		extractor: ext,
		timeout:   cfg.Timeout,
		breaker:   breaker,
		metrics:   m,
	}
}

// Analyze never blocks past the configured timeout and never panics into
// the caller.
func (g *Guarded) Analyze(ctx context.Context, text string) Result {
	if g == nil || g.extractor == nil {
		g.record("disabled")
		return Result{Value: Fallback(), Err: ErrDisabled}
	}

	var out Analysis
	err := g.breaker.Execute(func() error {
		var err error
		out, err = resilience.CallWithTimeout(ctx, g.timeout, "concept-extraction",
			func(ctx context.Context) (a Analysis, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.New("concept extractor panicked")
					}
				}()
				return g.extractor.Analyze(ctx, text)
			})
		return err
	})

	log := logger.FromContext(ctx).With("component", "concept-extractor")
	switch {
	case err == nil:
		g.record("ok")
		return Result{Value: normalize(out)}
	case errors.Is(err, resilience.ErrCircuitOpen):
		g.record("circuit_open")
	case errors.Is(err, context.DeadlineExceeded):
		g.record("timeout")
		log.Warn("concept extraction timed out, using fallback", "timeout", g.timeout)
	default:
		g.record("error")
		log.Warn("concept extraction failed, using fallback", "error", err)
	}
	return Result{Value: Fallback(), Err: err}
}

func (g *Guarded) record(outcome string) {
	if g != nil {
		g.metrics.ConceptCall(outcome)
	}
}

// normalize drops nameless entities and maps unknown intents to general.
func normalize(a Analysis) Analysis {
	if _, ok := ParseIntent(string(a.Intent)); !ok {
		a.Intent = IntentGeneral
	}
	kept := a.Entities[:0:0]
	for _, e := range a.Entities {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		kept = append(kept, e)
	}
	a.Entities = kept
	return a
}

