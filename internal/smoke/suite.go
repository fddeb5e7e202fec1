package smoke

import (
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

//go:embed default_suite.yaml
var defaultSuiteYAML []byte

// DefaultSuite returns the embedded suite covering every public endpoint.
func DefaultSuite() (*Suite, error) {
	return ParseSuite(defaultSuiteYAML)
}

// LoadSuite reads and compiles a YAML suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes a suite and compiles its jq filters so a broken filter
// fails before any request is sent.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSuite, err)
	}
	if len(s.Probes) == 0 && s.CacheCheck == nil && s.RateLimit == nil {
		return nil, fmt.Errorf("%w: no probes", ErrInvalidSuite)
	}
	seen := make(map[string]bool, len(s.Probes))
	for i := range s.Probes {
		p := &s.Probes[i]
		if err := p.compile(); err != nil {
			return nil, fmt.Errorf("%w: probe %d (%s): %w", ErrInvalidSuite, i, p.Name, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate probe name %q", ErrInvalidSuite, p.Name)
		}
		seen[p.Name] = true
	}
	if c := s.CacheCheck; c != nil {
		if err := checkPath(c.Path); err != nil {
			return nil, fmt.Errorf("%w: cache check: %w", ErrInvalidSuite, err)
		}
		if c.Name == "" {
			c.Name = "cache cold vs hot"
		}
	}
	if rl := s.RateLimit; rl != nil {
		if err := checkPath(rl.Path); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %w", ErrInvalidSuite, err)
		}
		if rl.Name == "" {
			rl.Name = "rate limit"
		}
		if rl.Attempts <= 0 {
			rl.Attempts = DefaultRateLimitAttempts
		}
	}
	return &s, nil
}

// compile fills defaults, validates the probe and compiles its filter.
func (p *Probe) compile() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("missing name")
	}
	if err := checkPath(p.Path); err != nil {
		return err
	}
	p.Method = strings.ToUpper(strings.TrimSpace(p.Method))
	switch p.Method {
	case "":
		p.Method = DefaultMethod
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions:
	default:
		return fmt.Errorf("unsupported method %q", p.Method)
	}
	if len(p.Expect) == 0 {
		p.Expect = []int{StatusOK}
	}
	switch p.Severity {
	case "":
		p.Severity = SeverityFail
	case SeverityFail, SeverityWarn:
	default:
		return fmt.Errorf("unknown severity %q", p.Severity)
	}
	if p.Filter == "" {
		p.ready = true
		return nil
	}
	q, err := gojq.Parse(p.Filter)
	if err != nil {
		return fmt.Errorf("parse filter: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return fmt.Errorf("compile filter: %w", err)
	}
	p.code, p.ready = code, true
	return nil
}

func checkPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must start with /", path)
	}
	return nil
}
