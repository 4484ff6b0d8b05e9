package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	cloneDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "git",
		Name:      "clone_duration_seconds",
		Help:      "Duration of repository clones",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	cloneFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "git",
		Name:      "clone_failures_total",
		Help:      "Number of repository clones that failed",
	})

	removeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "git",
		Name:      "remove_failures_total",
		Help:      "Number of working copies that could not be removed",
	})
)

// ErrEmptyURL is returned when no repository URL is supplied.
var ErrEmptyURL = errors.New("repository url is required")

// ErrProtocolNotAllowed is returned for local paths and URLs whose scheme is not allowed.
var ErrProtocolNotAllowed = errors.New("repository url protocol not allowed")

// DefaultProtocols are the transports cloned when Config.AllowedProtocols is empty.
var DefaultProtocols = []string{"https", "ssh", "git"}

// Config groups fetcher configuration values.
type Config struct {
	Binary  string
	Timeout time.Duration
	// Depth limits history for clones; zero means a full clone.
	Depth int
	// AllowedProtocols lists the git transports that may be cloned.
	AllowedProtocols []string
	Logger           zerolog.Logger
}

// CheckURL reports whether raw is an absolute URL whose scheme is in allowed.
// Bare filesystem paths and scp-style addresses are rejected.
func CheckURL(raw string, allowed []string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyURL
	}
	if len(allowed) == 0 {
		allowed = DefaultProtocols
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return fmt.Errorf("%w: %q is not an absolute url", ErrProtocolNotAllowed, raw)
	}

	scheme := strings.ToLower(parsed.Scheme)
	for _, protocol := range allowed {
		if strings.EqualFold(strings.TrimSpace(protocol), scheme) {
			if scheme != "file" && parsed.Host == "" {
				return fmt.Errorf("%w: %q has no host", ErrProtocolNotAllowed, raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProtocolNotAllowed, scheme)
}

// Fetcher clones repositories with the git command line client.
type Fetcher struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewFetcher constructs a git backed fetcher.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Binary == "" {
		cfg.Binary = "git"
	}
	if len(cfg.AllowedProtocols) == 0 {
		cfg.AllowedProtocols = DefaultProtocols
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Fetcher{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/pkg/git"),
		logger: logger.With().Str("component", "git_fetcher").Logger(),
	}
}

// Clone produces a working copy of repoURL at dest.
func (f *Fetcher) Clone(parent context.Context, repoURL, dest string) error {
	repoURL = strings.TrimSpace(repoURL)
	if err := CheckURL(repoURL, f.cfg.AllowedProtocols); err != nil {
		return err
	}

	ctx, span := f.tracer.Start(parent, "git.clone", trace.WithAttributes(
		attribute.String("git.url", repoURL),
	))
	defer span.End()

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	args := []string{"clone", "--quiet"}
	if f.cfg.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", f.cfg.Depth))
	}
	// "--" keeps URLs starting with a dash from being read as options.
	args = append(args, "--", repoURL, dest)

	cmd := exec.CommandContext(ctx, f.cfg.Binary, args...)
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ALLOW_PROTOCOL="+strings.Join(f.cfg.AllowedProtocols, ":"),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	cloneDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		cloneFailures.Inc()
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("git clone timed out after %s", f.cfg.Timeout)
		} else if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("git clone failed: %s: %w", msg, err)
		} else {
			err = fmt.Errorf("git clone failed: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	f.logger.Debug().Str("repo_url", repoURL).Str("dest", dest).Dur("duration", time.Since(start)).Msg("repository cloned")
	return nil
}

// Remove deletes path recursively. A missing path is not an error.
func (f *Fetcher) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	if err := os.RemoveAll(path); err != nil {
		removeFailures.Inc()
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
