package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/craigjb/spiny/internal/assemble"
	"github.com/craigjb/spiny/internal/config"
	"github.com/craigjb/spiny/internal/fingerprint"
	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/history"
	"github.com/craigjb/spiny/internal/host"
	"github.com/craigjb/spiny/internal/logfields"
	"github.com/craigjb/spiny/internal/metrics"
	"github.com/craigjb/spiny/internal/models"
	"github.com/craigjb/spiny/internal/notify"
	"github.com/craigjb/spiny/internal/pipeline"
	"github.com/craigjb/spiny/internal/state"
	"github.com/craigjb/spiny/internal/toolchain"
	"github.com/craigjb/spiny/internal/workspace"
)

// Outcome of a successful Run.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeGenerated Outcome = "generated"
)

// Result describes a finished run.
type Result struct {
	RunID       string
	Outcome     Outcome
	Reason      string
	Fingerprint fingerprint.Fingerprint
	Files       []string
	Duration    time.Duration
}

// RunLog receives a record of every run attempt.
type RunLog interface {
	Record(ctx context.Context, run history.Run) error
}

// Notifier publishes run outcomes.
type Notifier interface {
	Publish(ctx context.Context, event notify.Event) error
}

// Generator orchestrates generation runs. A Generator may be reused for
// sequential runs; it must not run two generations against the same
// destination concurrently.
type Generator struct {
	pipeline  *pipeline.Pipeline
	store     *state.Store
	assembler *assemble.Assembler

	recorder  metrics.Recorder
	runLog    RunLog
	notifier  Notifier
	registrar host.FileRegistrar

	workspaceBase string
	keepWorkspace bool
	logger        *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithRunLog records every run attempt.
func WithRunLog(l RunLog) Option {
	return func(g *Generator) { g.runLog = l }
}

// WithNotifier publishes every run outcome.
func WithNotifier(n Notifier) Option {
	return func(g *Generator) { g.notifier = n }
}

// WithRegistrar hands produced files to the host after successful generation.
func WithRegistrar(r host.FileRegistrar) Option {
	return func(g *Generator) { g.registrar = r }
}

// WithWorkspace sets where scratch workspaces are created and whether they
// survive the run.
func WithWorkspace(baseDir string, keep bool) Option {
	return func(g *Generator) {
		g.workspaceBase = baseDir
		g.keepWorkspace = keep
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// New creates a generator running tc.
func New(tc toolchain.Toolchain, opts ...Option) *Generator {
	g := &Generator{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.recorder == nil {
		g.recorder = metrics.NoopRecorder{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}

	g.store = state.NewStore().WithLogger(g.logger)
	g.pipeline = pipeline.New(tc).WithRecorder(g.recorder).WithLogger(g.logger)
	g.assembler = assemble.New(g.store).WithLogger(g.logger)
	return g
}

// Store exposes the state store used for skip decisions.
func (g *Generator) Store() *state.Store {
	return g.store
}

// Run performs one generation for req.
func (g *Generator) Run(ctx context.Context, req models.GenerationRequest) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logger := g.logger.With(logfields.RunID(res.RunID), logfields.Crate(req.CrateName))

	err := g.run(ctx, logger, req, res)
	res.Duration = time.Since(start)
	g.finish(ctx, logger, req, res, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Generator) run(ctx context.Context, logger *slog.Logger, req models.GenerationRequest, res *Result) error {
	if err := config.ValidateRequest(req); err != nil {
		return err
	}

	fp, err := fingerprint.Compute(req)
	if err != nil {
		return err
	}
	res.Fingerprint = fp

	decision := g.store.Check(req.OutputPath, fp)
	res.Reason = decision.Reason
	if !decision.Run {
		res.Outcome = OutcomeSkipped
		logger.Info("Inputs unchanged, skipping generation", logfields.Path(req.OutputPath))
		return nil
	}
	logger.Info("Generating crate",
		logfields.Version(req.CrateVersion),
		logfields.Path(req.OutputPath),
		logfields.Reason(decision.Reason),
		logfields.Fingerprint(fp.Digest()))

	ws := workspace.NewManager(g.workspaceBase, req.CrateName).Keep(g.keepWorkspace)
	if err := ws.Create(); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot create scratch workspace").Fatal().Build()
	}
	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			logger.Warn("Failed to clean up workspace", logfields.Path(ws.GetPath()), logfields.Error(cerr))
		}
	}()

	out, err := g.pipeline.Run(ctx, ws.GetPath(), req.SVDPath)
	if err != nil {
		return err
	}

	files, err := g.assembler.Assemble(ctx, req, fp, out)
	if err != nil {
		return err
	}
	res.Outcome = OutcomeGenerated
	res.Files = files

	if g.registrar != nil {
		g.registrar.AddFiles(host.DefaultFileset, host.DefaultFileType, files)
	}
	return nil
}

// finish records metrics, history and notifications for a run attempt.
func (g *Generator) finish(ctx context.Context, logger *slog.Logger, req models.GenerationRequest, res *Result, start time.Time, runErr error) {
	outcome := string(res.Outcome)
	if runErr != nil {
		outcome = string(metrics.OutcomeFailed)
	}
	g.recorder.ObserveRunDuration(res.Duration)
	g.recorder.IncRunOutcome(metrics.OutcomeLabel(outcome))

	if runErr == nil {
		logger.Info("Run finished",
			logfields.Outcome(outcome),
			logfields.DurationMS(float64(res.Duration.Milliseconds())),
			logfields.Files(len(res.Files)))
	}

	var digest, errText string
	if res.Fingerprint.SchemaInput != "" {
		digest = res.Fingerprint.Digest()
	}
	if runErr != nil {
		errText = runErr.Error()
	}

	if g.runLog != nil {
		run := history.Run{
			ID:          res.RunID,
			Crate:       req.CrateName,
			Version:     req.CrateVersion,
			Destination: req.OutputPath,
			Outcome:     outcome,
			Reason:      res.Reason,
			Fingerprint: digest,
			Error:       errText,
			StartedAt:   start,
			Duration:    res.Duration,
			Files:       len(res.Files),
		}
		if err := g.runLog.Record(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("Failed to record run history", logfields.Error(err))
		}
	}

	if g.notifier != nil {
		event := notify.Event{
			RunID:       res.RunID,
			Crate:       req.CrateName,
			Version:     req.CrateVersion,
			Destination: req.OutputPath,
			Outcome:     outcome,
			Reason:      res.Reason,
			Fingerprint: digest,
			Error:       errText,
			Files:       res.Files,
		}
		if err := g.notifier.Publish(context.WithoutCancel(ctx), event); err != nil {
			logger.Warn("Failed to publish run event", logfields.Error(err))
		}
	}
}
