package config

import (
	"path/filepath"
	"strings"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/models"
)

// Validate checks the required parameters and reports every missing one in a
// single ConfigError. It performs no I/O.
func (c *Config) Validate() error {
	if err := c.Parameters.validate(); err != nil {
		return err
	}
	if err := checkInputsOutsidePackage(c.Request()); err != nil {
		return err
	}
	if c.Tools.Timeout < 0 {
		return errors.ConfigError("tools.timeout must not be negative").
			WithContext("timeout", c.Tools.Timeout.String()).
			Build()
	}
	return nil
}

// ValidateRequest applies the parameter rules of Validate to an already
// resolved request.
func ValidateRequest(req models.GenerationRequest) error {
	params := Parameters{
		CrateName:        req.CrateName,
		CrateVersion:     req.CrateVersion,
		OutputPath:       req.OutputPath,
		SVDPath:          req.SVDPath,
		LinkerScriptPath: req.LinkerScriptPath,
	}
	if err := params.validate(); err != nil {
		return err
	}
	return checkInputsOutsidePackage(req)
}

func (p Parameters) validate() error {
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"crate_name", p.CrateName},
		{"crate_version", p.CrateVersion},
		{"output_path", p.OutputPath},
		{"svd_path", p.SVDPath},
	}
	for _, r := range required {
		if !trimmed(r.value) {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return errors.ConfigError("missing required parameters: "+strings.Join(missing, ", ")).
			WithContext("missing", missing).
			Build()
	}

	if strings.ContainsAny(p.CrateName, " \t\r\n\"") {
		return errors.ConfigError("crate_name must not contain whitespace or quotes").
			WithContext("crate_name", p.CrateName).
			Build()
	}
	return nil
}

// checkInputsOutsidePackage rejects inputs that the assembler would replace:
// the output path itself, or anything under one of the package entries.
// Inputs stored next to the package entries are fine.
func checkInputsOutsidePackage(req models.GenerationRequest) error {
	dest := filepath.Clean(req.OutputPath)
	owned := append(models.PackageEntries(), models.StateFileName)

	inputs := []struct {
		key  string
		path string
	}{
		{"svd_path", req.SVDPath},
		{"linker_script_path", req.LinkerScriptPath},
	}
	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		p := filepath.Clean(in.path)
		conflict := p == dest
		for _, name := range owned {
			if conflict {
				break
			}
			conflict = within(filepath.Join(dest, name), p)
		}
		if conflict {
			return errors.ConfigError(in.key+" lies inside generated package content").
				WithContext("path", in.path).
				WithContext("output_path", req.OutputPath).
				Build()
		}
	}
	return nil
}

// within reports whether path equals base or lies below it.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
