package state

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/craigjb/spiny/internal/fingerprint"
	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/logfields"
	"github.com/craigjb/spiny/internal/models"
)

// Decision explains the outcome of a skip check.
type Decision struct {
	Run    bool
	Reason string
}

// Reasons reported by Check.
const (
	ReasonNoState            = "no persisted state"
	ReasonStateUnreadable    = "persisted state unreadable"
	ReasonFingerprintChanged = "inputs changed"
	ReasonUpToDate           = "inputs unchanged"
)

// Store persists the last committed fingerprint beside the generated output
// and decides whether a destination must be regenerated.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a state store.
func NewStore() *Store {
	return &Store{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Path returns the state file location for a destination.
func Path(destination string) string {
	return filepath.Join(destination, models.StateFileName)
}

// ShouldRun reports whether the destination must be regenerated for current.
func (s *Store) ShouldRun(destination string, current fingerprint.Fingerprint) bool {
	return s.Check(destination, current).Run
}

// Check is ShouldRun with the reason attached. It only answers "skip" when the
// destination is structurally complete and the stored fingerprint matches
// exactly; every other condition, including an unreadable record, forces a run.
func (s *Store) Check(destination string, current fingerprint.Fingerprint) Decision {
	stored, err := s.Load(destination)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return s.run(destination, ReasonNoState)
		}
		s.logger.Warn("Ignoring persisted state",
			logfields.Path(Path(destination)),
			logfields.Error(err))
		return s.run(destination, ReasonStateUnreadable)
	}

	if missing := missingEntry(destination, current); missing != "" {
		return s.run(destination, "missing "+missing)
	}

	if !stored.Equal(current) {
		return s.run(destination, ReasonFingerprintChanged)
	}

	return Decision{Run: false, Reason: ReasonUpToDate}
}

func (s *Store) run(destination, reason string) Decision {
	s.logger.Debug("Generation required", logfields.Path(destination), logfields.Reason(reason))
	return Decision{Run: true, Reason: reason}
}

// missingEntry returns the first required package entry that is absent, or "".
func missingEntry(destination string, current fingerprint.Fingerprint) string {
	srcDir := filepath.Join(destination, models.SourceDirName)
	if info, err := os.Stat(srcDir); err != nil || !info.IsDir() {
		return models.SourceDirName + "/"
	}

	required := []string{
		filepath.Join(models.SourceDirName, models.EntryFileName),
		models.ManifestName,
		models.BuildScriptName,
		models.DeviceLayoutName,
	}
	if !current.LinkerAbsent() {
		required = append(required, models.LinkerDataName)
	}
	for _, rel := range required {
		info, err := os.Stat(filepath.Join(destination, rel))
		if err != nil || !info.Mode().IsRegular() {
			return rel
		}
	}
	return ""
}

// Load reads the committed fingerprint. A missing record yields an error
// wrapping fs.ErrNotExist; an unparsable one yields a StateCorruptionError.
func (s *Store) Load(destination string) (fingerprint.Fingerprint, error) {
	path := Path(destination)
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return fingerprint.Fingerprint{}, fmt.Errorf("state %s: %w", path, err)
		}
		return fingerprint.Fingerprint{}, errors.WrapError(err, errors.CategoryStateCorruption, "cannot read persisted state").
			Warning().
			WithContext("path", path).
			Build()
	}

	fp, err := fingerprint.Parse(data)
	if err != nil {
		return fingerprint.Fingerprint{}, errors.WrapError(err, errors.CategoryStateCorruption, "cannot parse persisted state").
			Warning().
			WithContext("path", path).
			Build()
	}
	return fp, nil
}

// Commit atomically records fp as the last successful generation.
func (s *Store) Commit(destination string, fp fingerprint.Fingerprint) error {
	data, err := fp.MarshalCanonical()
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "cannot encode fingerprint").Fatal().Build()
	}
	path := Path(destination)
	if err := writeFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot write persisted state").
			Fatal().
			WithContext("path", path).
			Build()
	}
	s.logger.Debug("Committed generator state", logfields.Path(path), logfields.Fingerprint(fp.Digest()))
	return nil
}

// Invalidate removes the committed record so an interrupted replacement of
// the destination can never be mistaken for a complete one.
func (s *Store) Invalidate(destination string) error {
	path := Path(destination)
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot invalidate persisted state").
			Fatal().
			WithContext("path", path).
			Build()
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
