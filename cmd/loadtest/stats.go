package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"
)

type stats struct {
	mu        sync.Mutex
	total     int64
	success   int64
	failed    int64
	cached    int64
	degraded  int64
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *stats) record(d time.Duration, status int, body *searchBody, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if err != nil || status == 0 {
		s.failed++
		return
	}
	s.codes[status]++
	s.latencies = append(s.latencies, d)
	if status < 200 || status >= 300 {
		s.failed++
		return
	}
	s.success++
	if body == nil {
		return
	}
	if body.Metadata.Cached {
		s.cached++
	}
	if len(body.Metadata.Degraded) > 0 {
		s.degraded++
	}
}

// snapshot returns a sorted, independent copy safe to read without the lock.
func (s *stats) snapshot() *stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &stats{
		total:     s.total,
		success:   s.success,
		failed:    s.failed,
		cached:    s.cached,
		degraded:  s.degraded,
		latencies: slices.Clone(s.latencies),
		codes:     make(map[int]int64, len(s.codes)),
	}
	for k, v := range s.codes {
		out.codes[k] = v
	}
	slices.Sort(out.latencies)
	return out
}

func report(w io.Writer, st *stats, elapsed time.Duration) {
	s := st.snapshot()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total requests: %d\n", s.total)
	fmt.Fprintf(w, "Successful:     %d\n", s.success)
	fmt.Fprintf(w, "Errors:         %d\n", s.failed)
	if s.total > 0 {
		fmt.Fprintf(w, "Error rate:     %.2f%%\n", pct(s.failed, s.total))
		fmt.Fprintf(w, "Requests/sec:   %.2f\n", float64(s.total)/elapsed.Seconds())
	}
	if s.success > 0 {
		fmt.Fprintf(w, "Cache hits:     %d (%.2f%%)\n", s.cached, pct(s.cached, s.success))
		fmt.Fprintf(w, "Degraded:       %d (%.2f%%)\n", s.degraded, pct(s.degraded, s.success))
	}

	if n := len(s.latencies); n > 0 {
		var sum time.Duration
		for _, l := range s.latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min: %s\n", s.latencies[0])
		fmt.Fprintf(w, "Avg: %s\n", sum/time.Duration(n))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%.0f: %s\n", p, percentile(s.latencies, p))
		}
		fmt.Fprintf(w, "Max: %s\n", s.latencies[n-1])
	}

	if len(s.codes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Status Codes ===")
		codes := make([]int, 0, len(s.codes))
		for code := range s.codes {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, s.codes[code])
		}
	}
}

func pct(n, of int64) float64 {
	return float64(n) / float64(of) * 100
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
