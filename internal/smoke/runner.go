package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/bookfinder/pkg/logger"
)

// Option configures a Runner.
type Option func(*Runner)

// WithHTTPClient replaces the default client, for tests and custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Runner) { r.hc = hc }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner executes probes one at a time against a single deployment.
type Runner struct {
	cfg    Config
	hc     *http.Client
	client *HTTPClient
	now    func() time.Time
	log    logger.Logger
}

// NewRunner validates cfg and builds a runner.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, now: time.Now, log: logger.Named("smoke")}
	for _, opt := range opts {
		opt(r)
	}
	r.client = newHTTPClient(r.cfg, r.hc)
	return r, nil
}

// Run executes the configured suite: probes in order, then the cache check,
// then the rate-limit probe when enabled.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Report, error) {
	r, err := NewRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Run executes the suite. On cancellation it returns the partial report with
// the context error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	suite := r.cfg.Suite
	if suite == nil {
		s, err := DefaultSuite()
		if err != nil {
			return nil, err
		}
		suite = s
	}

	report := &Report{
		RunID:   uuid.NewString(),
		BaseURL: r.cfg.BaseURL,
		Suite:   suite.Name,
		Started: r.now(),
		Results: make([]Result, 0, len(suite.Probes)+2),
	}
	log := r.log.With(logger.String("run_id", report.RunID))
	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.String("suite", suite.Name),
		logger.Int("probes", len(suite.Probes)),
		logger.Bool("rateLimit", r.cfg.RateLimit))
	fmt.Fprintf(r.cfg.Out, "Running %s against %s\n", suiteLabel(suite), r.cfg.BaseURL)

	runErr := r.runAll(ctx, suite, report)

	report.Finished = r.now()
	r.printSummary(report)
	log.Info(ctx, "smoke run finished",
		logger.Int("total", report.Total),
		logger.Int("passed", report.Passed),
		logger.Int("failed", report.Failed),
		logger.Int("warnings", report.Warnings),
		logger.Duration("duration", report.Finished.Sub(report.Started)))

	if r.cfg.ReportFile != "" {
		if err := writeReport(r.cfg.ReportFile, report); err != nil {
			log.Warn(ctx, "failed to write report", logger.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}
	return report, runErr
}

func (r *Runner) runAll(ctx context.Context, suite *Suite, report *Report) error {
	if !r.cfg.RateLimitOnly {
		if err := r.runProbes(ctx, suite, report); err != nil {
			return err
		}
	}
	if rl := suite.RateLimit; rl != nil && r.cfg.RateLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.record(report, r.ProbeRateLimit(ctx, *rl))
	}
	return ctx.Err()
}

func (r *Runner) runProbes(ctx context.Context, suite *Suite, report *Report) error {
	for _, p := range r.cfg.Select(suite) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.record(report, r.Request(ctx, p))
	}
	if c := suite.CacheCheck; c != nil && r.cfg.selected(c.Tags) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.record(report, r.CheckCache(ctx, *c))
	}
	return nil
}

func (r *Runner) record(report *Report, res Result) {
	report.add(res)
	r.printResult(res)
}

func (r *Runner) printResult(res Result) {
	switch res.Outcome {
	case Pass:
		if r.cfg.Verbose && res.Detail != "" {
			fmt.Fprintf(r.cfg.Out, "✅ PASS    %s (%d, %s): %s\n", res.Probe, res.Status, res.Duration.Round(msRound), res.Detail)
			return
		}
		fmt.Fprintf(r.cfg.Out, "✅ PASS    %s (%d, %s)\n", res.Probe, res.Status, res.Duration.Round(msRound))
	case Warning:
		fmt.Fprintf(r.cfg.Out, "⚠️  WARNING %s: %s\n", res.Probe, res.Detail)
	default:
		fmt.Fprintf(r.cfg.Out, "❌ FAIL    %s: %s\n", res.Probe, res.Detail)
	}
}

func (r *Runner) printSummary(report *Report) {
	fmt.Fprintf(r.cfg.Out, `%s
TOTAL: %d   PASSED: %d   FAILED: %d   WARNINGS: %d   (%s)
`, strings.Repeat("=", 60), report.Total, report.Passed, report.Failed, report.Warnings,
		report.Finished.Sub(report.Started).Round(msRound))
}

func suiteLabel(s *Suite) string {
	if s.Name == "" {
		return "suite"
	}
	return "suite " + s.Name
}

// ExitCode is the number of failed probes, capped at MaxExitCode.
func ExitCode(report *Report) int {
	if report == nil {
		return 1
	}
	return min(report.Failed, MaxExitCode)
}

// writeReport saves the report as indented JSON.
func writeReport(filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
