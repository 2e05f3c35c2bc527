package host

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/craigjb/spiny/internal/config"
	"github.com/craigjb/spiny/internal/foundation/errors"
)

// SupportedAPI is the generator API version understood by this package.
const SupportedAPI = "1.0"

// Input is the generator input file FuseSoC passes on the command line.
type Input struct {
	FilesRoot  string            `yaml:"files_root"`
	GAPI       string            `yaml:"gapi"`
	VLNV       string            `yaml:"vlnv"`
	Parameters config.Parameters `yaml:"parameters"`
}

// ReadInput parses a generator input file.
func ReadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.InputNotFoundError("generator input file not found").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot read generator input").
			Fatal().
			WithContext("path", path).
			Build()
	}

	var in Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "malformed generator input").
			Fatal().
			WithContext("path", path).
			Build()
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.FilesRoot != "" && !filepath.IsAbs(in.FilesRoot) {
		in.FilesRoot = filepath.Join(filepath.Dir(path), in.FilesRoot)
	}
	return &in, nil
}

func (in *Input) validate() error {
	if in.GAPI != "" && in.GAPI != SupportedAPI {
		return errors.ValidationError("unsupported generator API version").
			WithContext("gapi", in.GAPI).
			WithContext("supported", SupportedAPI).
			Build()
	}
	if _, err := coreName(in.VLNV); err != nil {
		return err
	}
	return nil
}

// Config builds the generator configuration for this request, layering the
// input's parameters over base when one is given.
func (in *Input) Config(base *config.Config) *config.Config {
	if base == nil {
		return config.FromParameters(in.Parameters, in.FilesRoot)
	}
	cfg := *base
	if in.FilesRoot != "" {
		cfg.Root = in.FilesRoot
	}
	cfg.Merge(in.Parameters)
	return &cfg
}

// coreName extracts the name part of a vendor:library:name:version string.
func coreName(vlnv string) (string, error) {
	parts := strings.Split(vlnv, ":")
	if len(parts) < 3 || parts[2] == "" {
		return "", errors.ValidationError("vlnv must have the form vendor:library:name[:version]").
			WithContext("vlnv", vlnv).
			Build()
	}
	return parts[2], nil
}
