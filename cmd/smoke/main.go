// Command smoke runs black-box checks against a deployed Bookfinder API and
// exits with the number of failed probes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/bookfinder/internal/smoke"
	"github.com/spf13/cobra"
)

const (
	defaultURL      = "http://localhost:8000"
	defaultDeadline = 10 * time.Minute
)

var (
	baseURL   string
	adminKey  string
	suitePath string
	tags      []string
	skipTags  []string
	report    string
	timeout   time.Duration
	deadline  time.Duration
	rateLimit bool
	attempts  int
	logFile   string
	logLevel  string
	verbose   bool

	// exitCode carries the failure count out of RunE.
	exitCode int
)

// rootCmd runs the full suite when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Smoke-test a running Bookfinder API",
	Long: `Send every probe of a suite to a running Bookfinder API and report
PASS, FAIL or WARNING per probe. The exit status is the number of failures.

Environment:
  API_URL    default for --url
  ADMIN_KEY  default for --admin-key`,
	SilenceUsage: true,
	RunE:         runSuite,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the suite",
	RunE:  runSuite,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the probes selected by --tags and --skip-tags",
	RunE:  listProbes,
}

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Only hammer the rate-limited endpoint until it answers 429",
	RunE: func(cmd *cobra.Command, args []string) error {
		rateLimit = true
		return execute(cmd, true)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&baseURL, "url", envOr("API_URL", defaultURL), "Base URL of the API (env API_URL)")
	flags.StringVar(&adminKey, "admin-key", os.Getenv("ADMIN_KEY"), "Admin key for /cache/stats (env ADMIN_KEY)")
	flags.StringVar(&suitePath, "suite", "", "YAML suite file (default: embedded suite)")
	flags.StringSliceVar(&tags, "tags", nil, "Run only probes with one of these tags")
	flags.StringSliceVar(&skipTags, "skip-tags", nil, "Skip probes with any of these tags")
	flags.StringVar(&report, "report", "", "Write a JSON report to this file")
	flags.DurationVar(&timeout, "timeout", smoke.DefaultTimeout, "Per-request timeout")
	flags.DurationVar(&deadline, "deadline", defaultDeadline, "Overall run deadline")
	flags.BoolVar(&rateLimit, "rate-limit", false, "Also run the rate-limit probe")
	flags.IntVar(&attempts, "attempts", 0, "Rate-limit attempts (default: suite value)")
	flags.StringVar(&logFile, "log-file", "", "Also write structured logs to this file")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print details for passing probes")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Usage and setup errors are distinct from failure counts.
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func runSuite(cmd *cobra.Command, _ []string) error {
	return execute(cmd, false)
}

func execute(cmd *cobra.Command, rateLimitOnly bool) error {
	closeLog, err := smoke.SetupLogging(logFile, logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	suite, err := loadSuite()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cfg := smoke.Config{
		BaseURL:           baseURL,
		AdminKey:          adminKey,
		Timeout:           timeout,
		Tags:              tags,
		SkipTags:          skipTags,
		RateLimit:         rateLimit,
		RateLimitAttempts: attempts,
		RateLimitOnly:     rateLimitOnly,
		ReportFile:        report,
		Suite:             suite,
		Out:               cmd.OutOrStdout(),
		Verbose:           verbose,
	}
	res, err := smoke.Run(ctx, cfg)
	if res == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "run stopped early: %v\n", err)
	}
	exitCode = smoke.ExitCode(res)
	return nil
}

func listProbes(cmd *cobra.Command, _ []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	cfg := smoke.Config{Tags: tags, SkipTags: skipTags}
	out := cmd.OutOrStdout()
	for _, p := range cfg.Select(suite) {
		fmt.Fprintf(out, "%-45s %-6s %-40s [%s]\n", p.Name, p.Method, p.Path, strings.Join(p.Tags, ","))
	}
	if c := suite.CacheCheck; c != nil {
		fmt.Fprintf(out, "%-45s %-6s %-40s [%s]\n", c.Name, "GET", c.Path, strings.Join(c.Tags, ","))
	}
	if rl := suite.RateLimit; rl != nil {
		fmt.Fprintf(out, "%-45s %-6s %-40s (%d attempts, --rate-limit)\n", rl.Name, "GET", rl.Path, rl.Attempts)
	}
	return nil
}

func loadSuite() (*smoke.Suite, error) {
	if suitePath != "" {
		return smoke.LoadSuite(suitePath)
	}
	return smoke.DefaultSuite()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
