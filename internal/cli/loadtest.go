package cli

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

var defaultLoadQueries = []string{
	"rust ownership",
	"search engine",
	"inverted index",
	"prefix tree",
	"ranking",
	"pagination",
	"autocomplete",
	"full text search",
	"title bonus",
	"document size",
}

type loadOptions struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	requests    int64
	rps         float64
	mode        string
	queries     []string
	topK        int
}

func newLoadtestCommand() *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running `minisearch serve` with concurrent queries and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.concurrency < 1 {
				return apperrors.InvalidArgumentf("--concurrency must be at least 1, got %d", opts.concurrency)
			}
			switch opts.mode {
			case proto.ModeExact, proto.ModePrefix, proto.ModeAutocomplete, "mixed":
			default:
				return apperrors.InvalidArgumentf("--mode must be exact, prefix, autocomplete or mixed, got %q", opts.mode)
			}
			if len(opts.queries) == 0 {
				return apperrors.InvalidArgumentf("--queries must not be empty")
			}
			report := runLoad(cmd.Context(), opts, &http.Client{
				Timeout: 10 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        opts.concurrency * 2,
					MaxIdleConnsPerHost: opts.concurrency * 2,
					IdleConnTimeout:     90 * time.Second,
				},
			})
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Successful == 0 {
				return errors.New("no request succeeded; is the service running?")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the service")
	f.IntVar(&opts.concurrency, "concurrency", 10, "concurrent workers")
	f.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	f.Int64Var(&opts.requests, "requests", 0, "stop after this many requests (0 runs for --duration)")
	f.Float64Var(&opts.rps, "rps", 0, "overall request rate limit (0 is unlimited)")
	f.StringVar(&opts.mode, "mode", "mixed", "exact, prefix, autocomplete or mixed")
	f.StringSliceVar(&opts.queries, "queries", defaultLoadQueries, "queries to cycle through")
	f.IntVar(&opts.topK, "topK", 10, "results per page for search requests")
	return cmd
}

// LoadReport summarises a load test run. Latencies are in milliseconds.
type LoadReport struct {
	Target      string           `json:"target"`
	Concurrency int              `json:"concurrency"`
	Elapsed     string           `json:"elapsed"`
	Total       int64            `json:"total_requests"`
	Successful  int64            `json:"successful"`
	Errors      int64            `json:"errors"`
	ErrorRate   float64          `json:"error_rate"`
	RPS         float64          `json:"requests_per_second"`
	Latency     *LatencySummary  `json:"latency_ms,omitempty"`
	StatusCodes map[string]int64 `json:"status_codes"`
}

type LatencySummary struct {
	Min    float64 `json:"min"`
	Avg    float64 `json:"avg"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stddev"`
}

type loadStats struct {
	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil || status < 200 || status >= 300 {
		s.errors.Add(1)
	} else {
		s.success.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

func runLoad(ctx context.Context, opts *loadOptions, client *http.Client) *LoadReport {
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var limiter *rate.Limiter
	if opts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.rps), opts.concurrency)
	}
	stats := &loadStats{codes: make(map[int]int64)}
	var issued atomic.Int64
	start := time.Now()

	var wg sync.WaitGroup
	for range opts.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				n := issued.Add(1)
				if opts.requests > 0 && n > opts.requests {
					return
				}
				i := int(n - 1)
				if limiter != nil && limiter.Wait(ctx) != nil {
					return
				}
				target := loadURL(opts, i)
				t0 := time.Now()
				status, err := fetch(ctx, client, target)
				if err != nil && ctx.Err() != nil {
					// cut off by the deadline, not a server failure
					return
				}
				stats.record(time.Since(t0), status, err)
			}
		}()
	}
	wg.Wait()
	return stats.report(opts, time.Since(start))
}

// loadURL picks the i-th request. Mixed mode rotates exact, prefix and
// autocomplete requests over the query list.
func loadURL(opts *loadOptions, i int) string {
	query := opts.queries[i%len(opts.queries)]
	mode := opts.mode
	if mode == "mixed" {
		mode = []string{proto.ModeExact, proto.ModePrefix, proto.ModeAutocomplete}[i%3]
	}
	base := strings.TrimRight(opts.baseURL, "/")
	v := url.Values{}
	if mode == proto.ModeAutocomplete {
		prefix := query
		if words := strings.Fields(query); len(words) > 0 {
			prefix = words[len(words)-1]
		}
		if r := []rune(prefix); len(r) > 3 {
			prefix = string(r[:3])
		}
		v.Set("prefix", prefix)
		return base + "/api/v1/autocomplete?" + v.Encode()
	}
	v.Set("q", query)
	v.Set("mode", mode)
	v.Set("topK", strconv.Itoa(opts.topK))
	return base + "/api/v1/search?" + v.Encode()
}

func fetch(ctx context.Context, client *http.Client, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *loadStats) report(opts *loadOptions, elapsed time.Duration) *LoadReport {
	r := &LoadReport{
		Target:      opts.baseURL,
		Concurrency: opts.concurrency,
		Elapsed:     elapsed.Round(time.Millisecond).String(),
		Total:       s.total.Load(),
		Successful:  s.success.Load(),
		Errors:      s.errors.Load(),
		StatusCodes: make(map[string]int64),
	}
	if r.Total > 0 {
		r.ErrorRate = float64(r.Errors) / float64(r.Total)
	}
	if elapsed > 0 {
		r.RPS = float64(r.Total) / elapsed.Seconds()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for code, n := range s.codes {
		r.StatusCodes[strconv.Itoa(code)] = n
	}
	if len(s.latencies) == 0 {
		return r
	}
	lat := slices.Clone(s.latencies)
	slices.Sort(lat)

	var sum time.Duration
	for _, d := range lat {
		sum += d
	}
	avg := float64(sum) / float64(len(lat))
	var sq float64
	for _, d := range lat {
		diff := float64(d) - avg
		sq += diff * diff
	}
	r.Latency = &LatencySummary{
		Min:    ms(lat[0]),
		Avg:    ms(time.Duration(avg)),
		P50:    ms(nearestRank(lat, 50)),
		P90:    ms(nearestRank(lat, 90)),
		P95:    ms(nearestRank(lat, 95)),
		P99:    ms(nearestRank(lat, 99)),
		Max:    ms(lat[len(lat)-1]),
		StdDev: ms(time.Duration(math.Sqrt(sq / float64(len(lat))))),
	}
	return r
}

func nearestRank(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

func ms(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())) / 1000
}
