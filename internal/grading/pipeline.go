package grading

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader/pkg/ai"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each evaluation stage",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Evaluations by kind and terminal state",
	}, []string{"kind", "state"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "cache_hits_total",
		Help:      "Evaluations answered from the result cache",
	})
)

// State is a step of the evaluation state machine.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring"
	StateExtracting State = "extracting"
	StatePrompting  State = "prompting"
	StateGrading    State = "grading"
	StateParsing    State = "parsing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// ResultCache stores grading results by prompt digest. Implementations swallow their own errors.
type ResultCache interface {
	Get(ctx context.Context, key string) (GradingResult, bool)
	Set(ctx context.Context, key string, result GradingResult)
}

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	TotalMarks    int
	SystemPrompt  string
	GraderTimeout time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	// CacheNamespace separates cached results of different graders or models.
	CacheNamespace string
}

// PipelineDeps groups the collaborators of a Pipeline.
type PipelineDeps struct {
	Guard     *WorkspaceGuard
	Extractor *Extractor
	Grader    ai.Grader
	Cache     ResultCache
	// Observer, when set, is called on every state transition.
	Observer func(State)
	Logger   zerolog.Logger
}

// Report is the outcome of a successful run.
type Report struct {
	Result      GradingResult `json:"result"`
	Rubric      Rubric        `json:"rubric"`
	Files       []string      `json:"files"`
	Warnings    []string      `json:"warnings,omitempty"`
	Cached      bool          `json:"cached"`
	WorkspaceID string        `json:"workspaceId"`
	Transitions []State       `json:"transitions"`
}

// Preview is the prompt a run would send, without contacting the grader.
type Preview struct {
	Prompt   string   `json:"prompt"`
	Rubric   Rubric   `json:"rubric"`
	Files    []string `json:"files"`
	Warnings []string `json:"warnings,omitempty"`
}

// Pipeline sequences workspace acquisition, extraction, prompting, grading and
// parsing for one request at a time per call. Concurrent calls use separate workspaces.
type Pipeline struct {
	guard     *WorkspaceGuard
	resolver  EntrypointResolver
	extractor *Extractor
	grader    ai.Grader
	cache     ResultCache
	observer  func(State)
	cfg       PipelineConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewPipeline constructs a pipeline.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if cfg.TotalMarks <= 0 {
		cfg.TotalMarks = 10
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = ai.DefaultSystemPrompt
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = NewExtractor(nil, deps.Logger)
	}

	return &Pipeline{
		guard:     deps.Guard,
		extractor: extractor,
		grader:    deps.Grader,
		cache:     deps.Cache,
		observer:  deps.Observer,
		cfg:       cfg,
		logger:    deps.Logger.With().Str("component", "grading_pipeline").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grader/internal/grading"),
	}
}

// TotalMarks returns the marks distributed by every rubric.
func (p *Pipeline) TotalMarks() int {
	return p.cfg.TotalMarks
}

// run tracks the state machine of a single evaluation.
type run struct {
	pipeline    *Pipeline
	logger      zerolog.Logger
	state       State
	entered     time.Time
	transitions []State
}

func (p *Pipeline) newRun(req Request) *run {
	return &run{
		pipeline: p,
		logger:   p.logger.With().Str("kind", string(req.Variant.Kind)).Str("repo_url", req.RepoURL).Logger(),
		state:    StateIdle,
		entered:  time.Now(),
	}
}

func (r *run) enter(next State) {
	stageDuration.WithLabelValues(string(r.state)).Observe(time.Since(r.entered).Seconds())
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(next)).Msg("evaluation state changed")

	r.state = next
	r.entered = time.Now()
	r.transitions = append(r.transitions, next)

	if r.pipeline.observer != nil {
		r.pipeline.observer(next)
	}
}

func (r *run) fail(err error) error {
	r.logger.Error().Err(err).Str("stage", string(r.state)).Msg("evaluation failed")
	r.enter(StateFailed)
	return err
}

// Run evaluates req and returns the parsed result. The workspace is released
// before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) (Report, error) {
	ctx, span := p.tracer.Start(ctx, "grading.pipeline.run", trace.WithAttributes(
		attribute.String("grading.kind", string(req.Variant.Kind)),
	))
	defer span.End()

	r := p.newRun(req)
	report, err := p.run(ctx, r, req)
	runsTotal.WithLabelValues(string(req.Variant.Kind), string(r.state)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	report.Transitions = r.transitions
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, r *run, req Request) (Report, error) {
	r.enter(StateAcquiring)
	ws, err := p.guard.Acquire(ctx, req.RepoURL)
	if err != nil {
		return Report{}, r.fail(err)
	}
	defer p.guard.Release(ws)

	r.enter(StateExtracting)
	bundle, err := p.extract(ws, req)
	if err != nil {
		return Report{}, r.fail(err)
	}

	r.enter(StatePrompting)
	rubric, err := AllocateMarks(p.cfg.TotalMarks, req.Criteria)
	if err != nil {
		return Report{}, r.fail(err)
	}
	prompt := RenderPrompt(req.Variant.Subject, rubric, bundle)

	report := Report{
		Rubric:      rubric,
		Files:       bundle.Paths(),
		Warnings:    bundle.Warnings,
		WorkspaceID: ws.ID,
	}

	key := p.cacheKey(req, prompt)
	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, key); ok {
			cacheHits.Inc()
			r.logger.Info().Msg("grading result served from cache")
			report.Result = cached
			report.Cached = true
			r.enter(StateDone)
			return report, nil
		}
	}

	r.enter(StateGrading)
	raw, err := p.grade(ctx, r, prompt)
	if err != nil {
		return Report{}, r.fail(err)
	}

	r.enter(StateParsing)
	result, err := ParseResponse(raw)
	if err != nil {
		return Report{}, r.fail(err)
	}

	if missing := MissingCriteria(rubric, result); len(missing) > 0 {
		r.logger.Warn().Strs("missing", missing).Msg("grader omitted scores for some criteria")
	}

	if p.cache != nil {
		p.cache.Set(ctx, key, result)
	}

	report.Result = result
	r.enter(StateDone)
	r.logger.Info().Int("total_score", result.TotalScore).Strs("files", report.Files).Msg("evaluation completed")
	return report, nil
}

// Preview acquires and extracts like Run and returns the rendered prompt
// instead of grading it. The workspace is released before Preview returns.
func (p *Pipeline) Preview(ctx context.Context, req Request) (Preview, error) {
	ws, err := p.guard.Acquire(ctx, req.RepoURL)
	if err != nil {
		return Preview{}, err
	}
	defer p.guard.Release(ws)

	bundle, err := p.extract(ws, req)
	if err != nil {
		return Preview{}, err
	}

	rubric, err := AllocateMarks(p.cfg.TotalMarks, req.Criteria)
	if err != nil {
		return Preview{}, err
	}

	return Preview{
		Prompt:   RenderPrompt(req.Variant.Subject, rubric, bundle),
		Rubric:   rubric,
		Files:    bundle.Paths(),
		Warnings: bundle.Warnings,
	}, nil
}

func (p *Pipeline) extract(ws *Workspace, req Request) (SourceBundle, error) {
	entry, err := p.resolver.Locate(ws.Path, req.Variant)
	if err != nil {
		return SourceBundle{}, err
	}
	return p.extractor.Collect(ws.Path, entry, req.Variant)
}

// grade calls the grader, retrying only transport failures up to MaxAttempts.
func (p *Pipeline) grade(ctx context.Context, r *run, prompt string) (string, error) {
	if p.grader == nil {
		return "", fmt.Errorf("%w: no grader configured", ErrAIRequest)
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.cfg.GraderTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.GraderTimeout)
		}

		raw, err := p.grader.Complete(callCtx, ai.CompletionRequest{System: p.cfg.SystemPrompt, Prompt: prompt})
		cancel()
		if err == nil {
			return raw, nil
		}

		lastErr = err
		r.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", p.cfg.MaxAttempts).Msg("grader request failed")

		if attempt == p.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		if p.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", ErrAIRequest, ctx.Err())
			case <-time.After(p.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	return "", fmt.Errorf("%w: %w", ErrAIRequest, lastErr)
}

func (p *Pipeline) cacheKey(req Request, prompt string) string {
	sum := sha256.New()
	sum.Write([]byte(p.cfg.CacheNamespace))
	sum.Write([]byte{0})
	sum.Write([]byte(req.Variant.Kind))
	sum.Write([]byte{0})
	sum.Write([]byte(prompt))
	return hex.EncodeToString(sum.Sum(nil))
}
