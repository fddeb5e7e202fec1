package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Request sends p and classifies the response. A status outside Expect is a
// failure. Otherwise the filter, if any, decides: true passes, false fails
// (or warns for warn-severity probes), null or no output warns, and any
// other value fails.
func (r *Runner) Request(ctx context.Context, p Probe) Result {
	res := Result{Probe: p.Name}
	if !p.ready {
		if err := p.compile(); err != nil {
			res.Outcome, res.Detail = Fail, "invalid probe: "+err.Error()
			return res
		}
	}
	resp, err := r.client.do(ctx, p.Method, p.Path, p.Query, r.client.probeHeaders(p))
	if err != nil {
		res.Outcome, res.Detail = Fail, err.Error()
		return res
	}
	res.Status, res.Duration = resp.status, resp.duration

	if !slices.Contains(p.Expect, resp.status) {
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("expected status %v, got %d: %s", p.Expect, resp.status, excerpt(resp.body))
		return res
	}
	if p.code == nil {
		res.Outcome = Pass
		return res
	}

	var doc any
	if err := json.Unmarshal(resp.body, &doc); err != nil {
		res.Outcome, res.Detail = Fail, "response is not JSON: "+excerpt(resp.body)
		return res
	}
	res.Outcome, res.Detail = r.evaluate(ctx, p, doc)
	return res
}

// evaluate runs the compiled filter and branches on its first output.
func (r *Runner) evaluate(ctx context.Context, p Probe, doc any) (Outcome, string) {
	iter := p.code.RunWithContext(ctx, doc)
	v, ok := iter.Next()
	if !ok {
		return Warning, "filter produced no output"
	}
	switch v := v.(type) {
	case error:
		return Fail, "filter error: " + v.Error()
	case bool:
		if v {
			return Pass, ""
		}
		if p.Severity == SeverityWarn {
			return Warning, "filter returned false: " + p.Filter
		}
		return Fail, "filter returned false: " + p.Filter
	case nil:
		return Warning, "filter returned null: " + p.Filter
	default:
		b, _ := json.Marshal(v)
		return Fail, "filter returned non-boolean " + excerpt(b)
	}
}

// CheckCache requests c.Path twice. The check passes when the second, hot
// request is faster than the first, cold one.
func (r *Runner) CheckCache(ctx context.Context, c CacheCheck) Result {
	res := Result{Probe: c.Name}
	cold, err := r.client.do(ctx, DefaultMethod, c.Path, c.Query, nil)
	if err != nil {
		res.Outcome, res.Detail = Fail, "cold request: "+err.Error()
		return res
	}
	hot, err := r.client.do(ctx, DefaultMethod, c.Path, c.Query, nil)
	if err != nil {
		res.Outcome, res.Detail = Fail, "hot request: "+err.Error()
		return res
	}
	res.Status, res.Duration = hot.status, cold.duration+hot.duration
	if cold.status != StatusOK || hot.status != StatusOK {
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("expected 200 twice, got %d then %d", cold.status, hot.status)
		return res
	}

	res.Detail = fmt.Sprintf("cold %s, hot %s (%s body)",
		cold.duration.Round(msRound), hot.duration.Round(msRound), humanize.Bytes(uint64(len(hot.body))))
	if hot.duration < cold.duration {
		res.Outcome = Pass
	} else {
		res.Outcome = Warning
	}
	return res
}

// ProbeRateLimit sends up to p.Attempts requests and passes once a 429 is
// seen, reporting how many 200s preceded it.
func (r *Runner) ProbeRateLimit(ctx context.Context, p RateLimitProbe) Result {
	res := Result{Probe: p.Name}
	attempts := p.Attempts
	if r.cfg.RateLimitAttempts > 0 {
		attempts = r.cfg.RateLimitAttempts
	}
	ok := 0
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			res.Outcome, res.Detail = Fail, err.Error()
			return res
		}
		resp, err := r.client.do(ctx, DefaultMethod, p.Path, p.Query, nil)
		if err != nil {
			res.Outcome, res.Detail = Fail, err.Error()
			return res
		}
		res.Duration += resp.duration
		switch resp.status {
		case StatusOK:
			ok++
		case StatusTooManyRequests:
			res.Outcome, res.Status = Pass, resp.status
			res.Detail = fmt.Sprintf("429 after %d successful requests", ok)
			return res
		}
	}
	res.Outcome = Fail
	res.Detail = fmt.Sprintf("no 429 after %d requests (%d returned 200)", attempts, ok)
	return res
}

// excerpt shortens a body for a failure message without splitting a rune.
func excerpt(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if len(s) <= bodyExcerptLen {
		return s
	}
	cut := bodyExcerptLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
