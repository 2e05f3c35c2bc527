package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/metrics"
	"github.com/craigjb/spiny/internal/models"
	"github.com/craigjb/spiny/internal/toolchain/toolchaintest"
)

type stageCount struct {
	name   string
	result metrics.ResultLabel
}

type countingRecorder struct {
	metrics.NoopRecorder
	results []stageCount
}

func (c *countingRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	c.results = append(c.results, stageCount{name: stage, result: result})
}

func quietPipeline(f *toolchaintest.Fake) *Pipeline {
	return New(f.Toolchain()).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeSVD(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "soc.svd")
	require.NoError(t, os.WriteFile(p, []byte("gpio\nuart\n"), 0o600))
	return p
}

func TestRun_ProducesSplitFormattedTree(t *testing.T) {
	fake := &toolchaintest.Fake{}
	rec := &countingRecorder{}
	work := t.TempDir()

	res, err := quietPipeline(fake).WithRecorder(rec).Run(context.Background(), work, writeSVD(t))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, SplitDirName), res.SourceDir.Path)
	assert.Equal(t, models.StageSplit, res.SourceDir.Stage)
	assert.Equal(t, filepath.Join(work, models.DeviceLayoutName), res.DeviceLayout.Path)
	assert.FileExists(t, filepath.Join(res.SourceDir.Path, "m0.rs"))
	assert.FileExists(t, filepath.Join(res.SourceDir.Path, "m1.rs"))

	entry, err := os.ReadFile(filepath.Join(res.SourceDir.Path, models.EntryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(entry), "pub mod m0;")

	assert.Equal(t, 1, fake.Calls("compile"))
	assert.Equal(t, 1, fake.Calls("split"))
	assert.Equal(t, 1, fake.Calls("format"))
	assert.Equal(t, []stageCount{
		{"schema-to-source", metrics.ResultSuccess},
		{"split", metrics.ResultSuccess},
		{"format", metrics.ResultSuccess},
	}, rec.results)
}

func TestRun_StageFailuresStopPipeline(t *testing.T) {
	toolErr := errors.ToolError("svd2rust failed").WithContext("tool", "svd2rust").Build()

	tests := []struct {
		name      string
		fake      *toolchaintest.Fake
		stage     models.StageName
		category  errors.ErrorCategory
		wantCalls map[string]int
	}{
		{
			name:      "compiler exits non-zero",
			fake:      &toolchaintest.Fake{CompileErr: toolErr},
			stage:     models.StageSchemaToSource,
			category:  errors.CategoryTool,
			wantCalls: map[string]int{"compile": 1, "split": 0, "format": 0},
		},
		{
			name:      "compiler succeeds without lib.rs",
			fake:      &toolchaintest.Fake{SkipLibRS: true},
			stage:     models.StageSchemaToSource,
			category:  errors.CategoryContract,
			wantCalls: map[string]int{"compile": 1, "split": 0, "format": 0},
		},
		{
			name:      "compiler succeeds without device.x",
			fake:      &toolchaintest.Fake{SkipDeviceX: true},
			stage:     models.StageSchemaToSource,
			category:  errors.CategoryContract,
			wantCalls: map[string]int{"compile": 1, "split": 0, "format": 0},
		},
		{
			name:      "splitter returns plain error",
			fake:      &toolchaintest.Fake{SplitErr: stderrors.New("boom")},
			stage:     models.StageSplit,
			category:  errors.CategoryTool,
			wantCalls: map[string]int{"compile": 1, "split": 1, "format": 0},
		},
		{
			name:      "splitter leaves directory empty",
			fake:      &toolchaintest.Fake{SplitEmpty: true},
			stage:     models.StageSplit,
			category:  errors.CategoryContract,
			wantCalls: map[string]int{"compile": 1, "split": 1, "format": 0},
		},
		{
			name:      "splitter removes directory",
			fake:      &toolchaintest.Fake{SplitNoDir: true},
			stage:     models.StageSplit,
			category:  errors.CategoryContract,
			wantCalls: map[string]int{"compile": 1, "split": 1, "format": 0},
		},
		{
			name:      "split tree lacks entry file",
			fake:      &toolchaintest.Fake{DropEntry: true},
			stage:     models.StageFormat,
			category:  errors.CategoryContract,
			wantCalls: map[string]int{"compile": 1, "split": 1, "format": 0},
		},
		{
			name:      "formatter fails",
			fake:      &toolchaintest.Fake{FormatErr: errors.ToolError("rustfmt failed").Build()},
			stage:     models.StageFormat,
			category:  errors.CategoryTool,
			wantCalls: map[string]int{"compile": 1, "split": 1, "format": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			res, err := quietPipeline(tt.fake).WithRecorder(rec).Run(context.Background(), t.TempDir(), writeSVD(t))
			require.Error(t, err)
			assert.Nil(t, res)

			ce, ok := errors.AsClassified(err)
			require.True(t, ok, "error should be classified: %v", err)
			assert.Equal(t, tt.category, ce.Category())
			stage, _ := ce.Context().GetString("stage")
			assert.Equal(t, string(tt.stage), stage)

			for name, want := range tt.wantCalls {
				assert.Equal(t, want, tt.fake.Calls(name), "calls to %s", name)
			}
			require.NotEmpty(t, rec.results)
			last := rec.results[len(rec.results)-1]
			assert.Equal(t, stageCount{string(tt.stage), metrics.ResultFailed}, last)
		})
	}
}

func TestRun_MissingSVD(t *testing.T) {
	fake := &toolchaintest.Fake{}
	_, err := quietPipeline(fake).Run(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "absent.svd"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInputNotFound))
	assert.Zero(t, fake.TotalCalls())
}

func TestRun_SplitClearsStaleOutput(t *testing.T) {
	fake := &toolchaintest.Fake{}
	work := t.TempDir()
	stale := filepath.Join(work, SplitDirName, "stale.rs")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	_, err := quietPipeline(fake).Run(context.Background(), work, writeSVD(t))
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRun_CanceledContext(t *testing.T) {
	fake := &toolchaintest.Fake{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietPipeline(fake).Run(ctx, t.TempDir(), writeSVD(t))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryRuntime))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fake.TotalCalls())
}

func TestRunStages_RecordsDurations(t *testing.T) {
	p := quietPipeline(&toolchaintest.Fake{})
	rs := &RunState{StageDurations: map[models.StageName]time.Duration{}}
	var order []models.StageName
	stages := []StageDef{
		{Name: "one", Fn: func(context.Context, *RunState) error { order = append(order, "one"); return nil }},
		{Name: "two", Fn: func(context.Context, *RunState) error { order = append(order, "two"); return nil }},
	}
	require.NoError(t, p.RunStages(context.Background(), rs, stages))
	assert.Equal(t, []models.StageName{"one", "two"}, order)
	assert.Len(t, rs.StageDurations, 2)
}
