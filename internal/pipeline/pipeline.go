package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/logfields"
	"github.com/craigjb/spiny/internal/metrics"
	"github.com/craigjb/spiny/internal/models"
	"github.com/craigjb/spiny/internal/toolchain"
)

// Intermediate artifact names inside the work directory.
const (
	CombinedSourceName = "lib.rs"
	SplitDirName       = "src"
)

// StageFunc executes one stage against the shared run state.
type StageFunc func(ctx context.Context, rs *RunState) error

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name models.StageName
	Fn   StageFunc
}

// RunState carries the artifacts produced so far.
type RunState struct {
	WorkDir string
	SVDPath string

	CombinedSource models.Artifact
	DeviceLayout   models.Artifact
	SourceDir      models.Artifact

	StageDurations map[models.StageName]time.Duration
}

// Pipeline runs the transformation stages with an injected toolchain.
type Pipeline struct {
	tools    toolchain.Toolchain
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New creates a pipeline over tc.
func New(tc toolchain.Toolchain) *Pipeline {
	return &Pipeline{
		tools:    tc,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithRecorder sets the metrics recorder.
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	if r != nil {
		p.recorder = r
	}
	return p
}

// WithLogger sets a custom logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Stages returns the stage definitions in execution order.
func (p *Pipeline) Stages() []StageDef {
	return []StageDef{
		{Name: models.StageSchemaToSource, Fn: p.stageSchemaToSource},
		{Name: models.StageSplit, Fn: p.stageSplit},
		{Name: models.StageFormat, Fn: p.stageFormat},
	}
}

// Run executes all stages in workDir and returns the artifacts the assembler needs.
func (p *Pipeline) Run(ctx context.Context, workDir, svdPath string) (*models.PipelineResult, error) {
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot resolve work directory").Fatal().Build()
	}
	absSVD, err := filepath.Abs(svdPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot resolve svd path").Fatal().Build()
	}

	rs := &RunState{
		WorkDir:        absWork,
		SVDPath:        absSVD,
		StageDurations: make(map[models.StageName]time.Duration, 3),
	}
	if err := p.RunStages(ctx, rs, p.Stages()); err != nil {
		return nil, err
	}
	return &models.PipelineResult{SourceDir: rs.SourceDir, DeviceLayout: rs.DeviceLayout}, nil
}

// RunStages executes stages in order, recording timing and stopping on the first error.
func (p *Pipeline) RunStages(ctx context.Context, rs *RunState, stages []StageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			return errors.RuntimeError("generation canceled").
				WithCause(ctx.Err()).
				WithContext("stage", string(st.Name)).
				Build()
		default:
		}

		p.logger.Info("Running stage", logfields.Stage(string(st.Name)))
		t0 := time.Now()
		err := st.Fn(ctx, rs)
		dur := time.Since(t0)

		rs.StageDurations[st.Name] = dur
		p.recorder.ObserveStageDuration(string(st.Name), dur)

		if err != nil {
			p.recorder.IncStageResult(string(st.Name), metrics.ResultFailed)
			err = withStage(st.Name, err)
			p.logger.Error("Stage failed",
				logfields.Stage(string(st.Name)),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
			return err
		}

		p.recorder.IncStageResult(string(st.Name), metrics.ResultSuccess)
		p.logger.Debug("Stage completed",
			logfields.Stage(string(st.Name)),
			logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}

// withStage tags err with the failing stage. Unclassified errors from a tool
// capability are reported as tool invocation failures.
func withStage(stage models.StageName, err error) error {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return errors.WrapError(err, errors.CategoryTool, fmt.Sprintf("%s stage failed", stage)).
			Fatal().
			WithContext("stage", string(stage)).
			Build()
	}
	if _, tagged := ce.Context().Get("stage"); tagged {
		return err
	}
	return ce.WithContext("stage", string(stage))
}
