package host

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/craigjb/spiny/internal/foundation/errors"
)

// Defaults used when registering a generated package.
const (
	DefaultFileset  = "pac"
	DefaultFileType = "user"
	DefaultTarget   = "default"
	coreHeader      = "CAPI=2:\n"
)

// FileRegistrar receives the files a successful generation produced.
type FileRegistrar interface {
	AddFiles(fileset, fileType string, files []string)
}

// Fileset is one entry under filesets in a core file.
type Fileset struct {
	Files    []string `yaml:"files"`
	FileType string   `yaml:"file_type,omitempty"`
}

// Target is one entry under targets in a core file.
type Target struct {
	Filesets []string `yaml:"filesets"`
}

// CoreFile is the document written back to FuseSoC.
type CoreFile struct {
	Name     string             `yaml:"name"`
	Filesets map[string]Fileset `yaml:"filesets,omitempty"`
	Targets  map[string]Target  `yaml:"targets,omitempty"`
}

// Registry collects registered files for one generator request.
type Registry struct {
	vlnv     string
	filesets map[string]Fileset
	targets  map[string]Target
}

// NewRegistry creates a registry for the core identified by vlnv.
func NewRegistry(vlnv string) *Registry {
	return &Registry{
		vlnv:     vlnv,
		filesets: make(map[string]Fileset),
		targets:  make(map[string]Target),
	}
}

// AddFiles records files under fileset and attaches the fileset to the
// default target. Adding to an existing fileset replaces its files.
func (r *Registry) AddFiles(fileset, fileType string, files []string) {
	r.filesets[fileset] = Fileset{Files: append([]string(nil), files...), FileType: fileType}

	t := r.targets[DefaultTarget]
	for _, fs := range t.Filesets {
		if fs == fileset {
			return
		}
	}
	t.Filesets = append(t.Filesets, fileset)
	r.targets[DefaultTarget] = t
}

// Empty reports whether no files were registered.
func (r *Registry) Empty() bool {
	return len(r.filesets) == 0
}

// Core returns the core file document.
func (r *Registry) Core() CoreFile {
	return CoreFile{Name: r.vlnv, Filesets: r.filesets, Targets: r.targets}
}

// WriteCore writes <name>.core into dir and returns its path.
func (r *Registry) WriteCore(dir string) (string, error) {
	name, err := coreName(r.vlnv)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(coreHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r.Core()); err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "cannot encode core file").Fatal().Build()
	}
	if err := enc.Close(); err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "cannot encode core file").Fatal().Build()
	}

	path := filepath.Join(dir, name+".core")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "cannot write core file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	return path, nil
}

// ParseCore decodes a core file written by WriteCore.
func ParseCore(data []byte) (*CoreFile, error) {
	if !bytes.HasPrefix(data, []byte(coreHeader)) {
		return nil, errors.ValidationError("core file is missing the CAPI=2 header").Build()
	}
	var core CoreFile
	if err := yaml.Unmarshal(data[len(coreHeader):], &core); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "malformed core file").Fatal().Build()
	}
	return &core, nil
}
