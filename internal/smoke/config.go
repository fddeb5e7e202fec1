package smoke

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/itchyny/gojq"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL           string        // Base URL of the deployed API
	AdminKey          string        // Sent as X-Admin-Key on admin probes
	Timeout           time.Duration // Per-request timeout
	Tags              []string      // Run only probes carrying one of these tags
	SkipTags          []string      // Skip probes carrying any of these tags
	RateLimit         bool          // Run the rate-limit probe
	RateLimitAttempts int           // Overrides the suite's attempt count when > 0
	RateLimitOnly     bool          // Skip probes and the cache check; implies RateLimit
	ReportFile        string        // Write the JSON report here when set
	Suite             *Suite        // Nil runs DefaultSuite
	Out               io.Writer     // PASS/FAIL lines and the summary; nil discards
	Verbose           bool          // Print passing probes' details too
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q must be absolute", ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RateLimitOnly {
		c.RateLimit = true
	}
	return nil
}

// Select returns the suite's probes that pass the tag filters, in order.
func (c *Config) Select(s *Suite) []Probe {
	out := make([]Probe, 0, len(s.Probes))
	for _, p := range s.Probes {
		if c.selected(p.Tags) {
			out = append(out, p)
		}
	}
	return out
}

// selected reports whether tags pass the include and skip filters.
func (c *Config) selected(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(c.SkipTags, t) {
			return false
		}
	}
	if len(c.Tags) == 0 {
		return true
	}
	for _, t := range tags {
		if slices.Contains(c.Tags, t) {
			return true
		}
	}
	return false
}

// Severity decides how a false filter result is counted.
type Severity string

// Severities.
const (
	SeverityFail Severity = "fail"
	SeverityWarn Severity = "warn"
)

// Probe is one HTTP request with its expected status and an optional jq
// assertion over the JSON body.
type Probe struct {
	Name    string            `yaml:"name" json:"name"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Path    string            `yaml:"path" json:"path"`
	Query   map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// Admin sends the configured admin key. AdminKeyOverride replaces it, and
	// an empty override sends no header at all.
	Admin            bool     `yaml:"admin,omitempty" json:"admin,omitempty"`
	AdminKeyOverride *string  `yaml:"admin_key,omitempty" json:"admin_key,omitempty"`
	Expect           []int    `yaml:"expect,omitempty" json:"expect,omitempty"`
	Filter           string   `yaml:"filter,omitempty" json:"filter,omitempty"`
	Severity         Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
	Tags             []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	code  *gojq.Code
	ready bool
}

// CacheCheck requests the same path twice and expects the second to be faster.
type CacheCheck struct {
	Name  string            `yaml:"name"`
	Path  string            `yaml:"path"`
	Query map[string]string `yaml:"query,omitempty"`
	Tags  []string          `yaml:"tags,omitempty"`
}

// RateLimitProbe hammers one path until the server answers 429.
type RateLimitProbe struct {
	Name     string            `yaml:"name"`
	Path     string            `yaml:"path"`
	Query    map[string]string `yaml:"query,omitempty"`
	Attempts int               `yaml:"attempts,omitempty"`
}

// Suite is an ordered list of probes plus the optional timing checks.
type Suite struct {
	Name       string          `yaml:"name"`
	Probes     []Probe         `yaml:"probes"`
	CacheCheck *CacheCheck     `yaml:"cache_check,omitempty"`
	RateLimit  *RateLimitProbe `yaml:"rate_limit,omitempty"`
}

// Outcome classifies a probe result.
type Outcome string

// Outcomes.
const (
	Pass    Outcome = "PASS"
	Fail    Outcome = "FAIL"
	Warning Outcome = "WARNING"
)

// Result is the outcome of one probe or check.
type Result struct {
	Probe    string        `json:"probe"`
	Outcome  Outcome       `json:"outcome"`
	Status   int           `json:"status,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
}

// Report aggregates a run. Total always equals Passed + Failed + Warnings.
type Report struct {
	RunID    string    `json:"run_id"`
	BaseURL  string    `json:"base_url"`
	Suite    string    `json:"suite"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Warnings int       `json:"warnings"`
	Results  []Result  `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	r.Total++
	switch res.Outcome {
	case Pass:
		r.Passed++
	case Warning:
		r.Warnings++
	default:
		r.Failed++
	}
}
