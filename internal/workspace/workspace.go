package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/craigjb/spiny/internal/logfields"
)

// Manager handles one scratch workspace.
type Manager struct {
	baseDir string
	prefix  string
	path    string
	keep    bool
}

// NewManager creates a manager whose workspaces live under baseDir (the
// system temp dir when empty) and are named after label.
func NewManager(baseDir, label string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{
		baseDir: baseDir,
		prefix:  "pacgen-" + sanitize(label) + "-",
	}
}

// Keep disables removal on Cleanup.
func (m *Manager) Keep(keep bool) *Manager {
	m.keep = keep
	return m
}

// Create makes a fresh, empty workspace directory.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	dir, err := os.MkdirTemp(m.baseDir, m.prefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.path = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// GetPath returns the workspace directory, or "" before Create.
func (m *Manager) GetPath() string {
	return m.path
}

// Cleanup removes the workspace unless Keep was requested.
func (m *Manager) Cleanup() error {
	if m.path == "" {
		return nil
	}

	if m.keep {
		slog.Info("Keeping workspace", logfields.Path(m.path))
		return nil
	}

	if err := os.RemoveAll(m.path); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}

	slog.Debug("Cleaned up workspace", logfields.Path(m.path))
	m.path = ""
	return nil
}

func sanitize(label string) string {
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, label)
	if label == "" {
		return "run"
	}
	return label
}
