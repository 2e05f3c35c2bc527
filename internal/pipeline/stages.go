package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/models"
)

// stageSchemaToSource runs the schema compiler and requires both lib.rs and
// device.x afterwards. Exiting 0 without them is a contract violation.
func (p *Pipeline) stageSchemaToSource(ctx context.Context, rs *RunState) error {
	info, err := os.Stat(rs.SVDPath)
	if err != nil || !info.Mode().IsRegular() {
		return errors.InputNotFoundError("SVD input does not exist or is not a file").
			WithContext("path", rs.SVDPath).
			Build()
	}

	if err := p.tools.Compiler.Compile(ctx, rs.WorkDir, rs.SVDPath); err != nil {
		return err
	}

	libRS := filepath.Join(rs.WorkDir, CombinedSourceName)
	if err := requireFile(libRS, "schema compiler did not generate "+CombinedSourceName); err != nil {
		return err
	}
	deviceX := filepath.Join(rs.WorkDir, models.DeviceLayoutName)
	if err := requireFile(deviceX, "schema compiler did not generate "+models.DeviceLayoutName); err != nil {
		return err
	}

	rs.CombinedSource = models.Artifact{Stage: models.StageSchemaToSource, Path: libRS}
	rs.DeviceLayout = models.Artifact{Stage: models.StageSchemaToSource, Path: deviceX}
	return nil
}

// stageSplit recreates an empty output directory, runs the splitter and
// rejects a missing or empty result.
func (p *Pipeline) stageSplit(ctx context.Context, rs *RunState) error {
	srcDir := filepath.Join(rs.WorkDir, SplitDirName)
	if err := os.RemoveAll(srcDir); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot clear split output directory").
			Fatal().
			WithContext("path", srcDir).
			Build()
	}
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot create split output directory").
			Fatal().
			WithContext("path", srcDir).
			Build()
	}

	if err := p.tools.Splitter.Split(ctx, rs.WorkDir, rs.CombinedSource.Path, srcDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return errors.WrapError(err, errors.CategoryContract, "split output directory is missing").
			Fatal().
			WithContext("path", srcDir).
			Build()
	}
	if len(entries) == 0 {
		return errors.ContractError("split output directory is empty").
			WithContext("path", srcDir).
			Build()
	}

	rs.SourceDir = models.Artifact{Stage: models.StageSplit, Path: srcDir}
	return nil
}

// stageFormat formats the split tree's entry file in place.
func (p *Pipeline) stageFormat(ctx context.Context, rs *RunState) error {
	entry := filepath.Join(rs.SourceDir.Path, models.EntryFileName)
	if err := requireFile(entry, fmt.Sprintf("%s/%s is missing for the formatter", SplitDirName, models.EntryFileName)); err != nil {
		return err
	}
	return p.tools.Formatter.Format(ctx, rs.WorkDir, entry)
}

func requireFile(path, message string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return errors.ContractError(message).
			WithContext("path", path).
			Build()
	}
	return nil
}
