package assemble

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/craigjb/spiny/internal/fingerprint"
	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/logfields"
	"github.com/craigjb/spiny/internal/models"
	"github.com/craigjb/spiny/internal/state"
)

// Assembler writes generated packages into their destinations.
type Assembler struct {
	store  *state.Store
	logger *slog.Logger
}

// New creates an assembler that commits through store.
func New(store *state.Store) *Assembler {
	return &Assembler{store: store, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (a *Assembler) WithLogger(logger *slog.Logger) *Assembler {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Assemble stages the package for req from res, swaps its entries into
// req.OutputPath and commits fp. Entries of the destination that the package
// does not own are left alone. It returns the absolute paths of the package
// files, sorted.
func (a *Assembler) Assemble(ctx context.Context, req models.GenerationRequest, fp fingerprint.Fingerprint, res *models.PipelineResult) ([]string, error) {
	if res == nil {
		return nil, errors.InternalError("assemble called without pipeline result").Build()
	}

	dest, err := filepath.Abs(req.OutputPath)
	if err != nil {
		return nil, fsError(err, "cannot resolve output path", req.OutputPath)
	}
	if err := prepareDestination(dest); err != nil {
		return nil, err
	}
	a.sweep(dest)

	staging, err := os.MkdirTemp(dest, stagingPrefix)
	if err != nil {
		return nil, fsError(err, "cannot create staging directory", dest)
	}
	defer a.removeScratch(staging)

	if err := a.stage(staging, req, res); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.RuntimeError("generation canceled before swap").WithCause(err).Build()
	}

	if err := a.swap(staging, dest); err != nil {
		return nil, err
	}

	if err := a.store.Commit(dest, fp); err != nil {
		return nil, err
	}

	files, err := listFiles(dest)
	if err != nil {
		return nil, fsError(err, "cannot list generated package", dest)
	}
	a.logger.Info("Package assembled", logfields.Path(dest), logfields.Files(len(files)))
	return files, nil
}

// stage lays out the complete package inside dir.
func (a *Assembler) stage(dir string, req models.GenerationRequest, res *models.PipelineResult) error {
	srcDst := filepath.Join(dir, models.SourceDirName)
	if err := copyDir(res.SourceDir.Path, srcDst); err != nil {
		return fsError(err, "cannot copy generated sources", res.SourceDir.Path)
	}

	deviceDst := filepath.Join(dir, models.DeviceLayoutName)
	if err := copyFile(res.DeviceLayout.Path, deviceDst); err != nil {
		return fsError(err, "cannot copy device layout", res.DeviceLayout.Path)
	}

	if req.HasLinkerScript() {
		linkerDst := filepath.Join(dir, models.LinkerDataName)
		if err := copyFile(req.LinkerScriptPath, linkerDst); err != nil {
			if os.IsNotExist(err) {
				return errors.InputNotFoundError("linker script does not exist").
					WithCause(err).
					WithContext("path", req.LinkerScriptPath).
					Build()
			}
			return fsError(err, "cannot copy linker script", req.LinkerScriptPath)
		}
	}

	manifest, err := RenderManifest(req.CrateName, req.CrateVersion)
	if err != nil {
		return err
	}
	manifestDst := filepath.Join(dir, models.ManifestName)
	if err := os.WriteFile(manifestDst, manifest, 0o644); err != nil {
		return fsError(err, "cannot write manifest", manifestDst)
	}

	buildDst := filepath.Join(dir, models.BuildScriptName)
	if err := os.WriteFile(buildDst, []byte(BuildScript), 0o644); err != nil {
		return fsError(err, "cannot write build script", buildDst)
	}
	return nil
}

const (
	stagingPrefix = ".pacgen-staging-"
	asidePrefix   = ".pacgen-old-"
)

func prepareDestination(dest string) error {
	info, err := os.Stat(dest)
	switch {
	case err == nil && !info.IsDir():
		return errors.FileSystemError("output path exists and is not a directory").
			WithContext("path", dest).
			Build()
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fsError(err, "cannot inspect output path", dest)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fsError(err, "cannot create output directory", dest)
	}
	return nil
}

// sweep removes scratch directories left in dest by an interrupted run.
func (a *Assembler) sweep(dest string) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && (strings.HasPrefix(name, stagingPrefix) || strings.HasPrefix(name, asidePrefix)) {
			a.removeScratch(filepath.Join(dest, name))
		}
	}
}

func (a *Assembler) removeScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		a.logger.Warn("Failed to remove scratch directory", logfields.Path(dir), logfields.Error(err))
	}
}

// swap moves the package entries of dest aside and renames the staged ones
// in. An owned entry missing from staging, such as a pac.x from an earlier
// run with a linker script, ends up removed. The state file is removed first
// so a crash mid-swap never leaves a state record describing other content.
func (a *Assembler) swap(staging, dest string) error {
	if err := a.store.Invalidate(dest); err != nil {
		return err
	}

	aside, err := os.MkdirTemp(dest, asidePrefix)
	if err != nil {
		return fsError(err, "cannot create directory for previous package", dest)
	}
	defer a.removeScratch(aside)

	var moved, placed []string
	rollback := func() {
		for _, name := range placed {
			if err := os.RemoveAll(filepath.Join(dest, name)); err != nil {
				a.logger.Error("Failed to remove partially placed entry", logfields.Path(filepath.Join(dest, name)), logfields.Error(err))
			}
		}
		for _, name := range moved {
			if err := os.Rename(filepath.Join(aside, name), filepath.Join(dest, name)); err != nil {
				a.logger.Error("Failed to restore previous package entry", logfields.Path(filepath.Join(dest, name)), logfields.Error(err))
			}
		}
	}

	for _, name := range models.PackageEntries() {
		target := filepath.Join(dest, name)
		if _, err := os.Lstat(target); err == nil {
			if err := os.Rename(target, filepath.Join(aside, name)); err != nil {
				rollback()
				return fsError(err, "cannot move previous package entry aside", target)
			}
			moved = append(moved, name)
		} else if !os.IsNotExist(err) {
			rollback()
			return fsError(err, "cannot inspect package entry", target)
		}

		staged := filepath.Join(staging, name)
		if _, err := os.Lstat(staged); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(staged, target); err != nil {
			rollback()
			return fsError(err, "cannot move staged entry into place", target)
		}
		placed = append(placed, name)
	}
	return nil
}

// listFiles returns the files of the package entries inside dest.
func listFiles(dest string) ([]string, error) {
	var files []string
	for _, name := range models.PackageEntries() {
		root := filepath.Join(dest, name)
		if _, err := os.Lstat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func fsError(err error, message, path string) error {
	return errors.WrapError(err, errors.CategoryFileSystem, message).
		Fatal().
		WithContext("path", path).
		Build()
}
