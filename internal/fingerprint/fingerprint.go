// Package fingerprint computes the content identity of every input that
// influences a generated crate.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/models"
)

// Fingerprint keys. The persisted state record uses exactly these.
const (
	KeySchemaInput    = "schema-input"
	KeyLinkerInput    = "linker-input"
	KeyPackageName    = "package-name"
	KeyPackageVersion = "package-version"
)

// chunkSize bounds memory use while hashing arbitrarily large inputs.
const chunkSize = 64 * 1024

// Fingerprint is the content identity of a GenerationRequest.
//
// LinkerInput is nil when no linker script was supplied. That absent marker
// serializes as JSON null and is distinct from the digest of an empty file.
type Fingerprint struct {
	SchemaInput    string  `json:"schema-input"`
	LinkerInput    *string `json:"linker-input"`
	PackageName    string  `json:"package-name"`
	PackageVersion string  `json:"package-version"`
}

// Compute reads the register description and, when supplied, the linker
// script, and returns their SHA-256 digests alongside the scalar request fields.
func Compute(req models.GenerationRequest) (Fingerprint, error) {
	schema, err := hashFile(req.SVDPath, KeySchemaInput)
	if err != nil {
		return Fingerprint{}, err
	}

	fp := Fingerprint{
		SchemaInput:    schema,
		PackageName:    req.CrateName,
		PackageVersion: req.CrateVersion,
	}

	if req.HasLinkerScript() {
		linker, err := hashFile(req.LinkerScriptPath, KeyLinkerInput)
		if err != nil {
			return Fingerprint{}, err
		}
		fp.LinkerInput = &linker
	}

	return fp, nil
}

func hashFile(path, key string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.InputNotFoundError("input does not exist").
				WithContext("input", key).
				WithContext("path", path).
				Build()
		}
		return "", errors.WrapError(err, errors.CategoryFileSystem, "cannot stat input").
			Fatal().
			WithContext("input", key).
			WithContext("path", path).
			Build()
	}
	if !info.Mode().IsRegular() {
		return "", errors.InputNotFoundError("input is not a regular file").
			WithContext("input", key).
			WithContext("path", path).
			Build()
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "cannot open input").
			Fatal().
			WithContext("input", key).
			WithContext("path", path).
			Build()
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, chunkSize)); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "cannot read input").
			Fatal().
			WithContext("input", key).
			WithContext("path", path).
			Build()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal reports whether every key/value pair matches.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.SchemaInput != other.SchemaInput ||
		f.PackageName != other.PackageName ||
		f.PackageVersion != other.PackageVersion {
		return false
	}
	if f.LinkerInput == nil || other.LinkerInput == nil {
		return f.LinkerInput == nil && other.LinkerInput == nil
	}
	return *f.LinkerInput == *other.LinkerInput
}

// LinkerAbsent reports whether the fingerprint carries the absent marker.
func (f Fingerprint) LinkerAbsent() bool {
	return f.LinkerInput == nil
}

// Digest returns a short stable identifier of the whole fingerprint, for logs.
func (f Fingerprint) Digest() string {
	data, err := f.MarshalCanonical()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// MarshalCanonical encodes the fingerprint with keys in sorted order.
func (f Fingerprint) MarshalCanonical() ([]byte, error) {
	return json.Marshal(f.asMap())
}

func (f Fingerprint) asMap() map[string]any {
	var linker any
	if f.LinkerInput != nil {
		linker = *f.LinkerInput
	}
	return map[string]any{
		KeySchemaInput:    f.SchemaInput,
		KeyLinkerInput:    linker,
		KeyPackageName:    f.PackageName,
		KeyPackageVersion: f.PackageVersion,
	}
}

// Parse decodes a persisted fingerprint strictly: the object must hold exactly
// the four keys, file digests must be hex SHA-256 strings (or null for the
// linker key), and nothing may follow the object.
func Parse(data []byte) (Fingerprint, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Fingerprint{}, fmt.Errorf("decode state: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Fingerprint{}, fmt.Errorf("decode state: trailing content")
	}
	if raw == nil {
		return Fingerprint{}, fmt.Errorf("decode state: not an object")
	}

	want := []string{KeySchemaInput, KeyLinkerInput, KeyPackageName, KeyPackageVersion}
	if len(raw) != len(want) {
		return Fingerprint{}, fmt.Errorf("decode state: expected keys %v, got %v", want, sortedKeys(raw))
	}
	for _, k := range want {
		if _, ok := raw[k]; !ok {
			return Fingerprint{}, fmt.Errorf("decode state: missing key %q", k)
		}
	}

	var fp Fingerprint
	if err := json.Unmarshal(raw[KeySchemaInput], &fp.SchemaInput); err != nil {
		return Fingerprint{}, fmt.Errorf("decode %s: %w", KeySchemaInput, err)
	}
	if err := json.Unmarshal(raw[KeyLinkerInput], &fp.LinkerInput); err != nil {
		return Fingerprint{}, fmt.Errorf("decode %s: %w", KeyLinkerInput, err)
	}
	if err := json.Unmarshal(raw[KeyPackageName], &fp.PackageName); err != nil {
		return Fingerprint{}, fmt.Errorf("decode %s: %w", KeyPackageName, err)
	}
	if err := json.Unmarshal(raw[KeyPackageVersion], &fp.PackageVersion); err != nil {
		return Fingerprint{}, fmt.Errorf("decode %s: %w", KeyPackageVersion, err)
	}

	if !isDigest(fp.SchemaInput) {
		return Fingerprint{}, fmt.Errorf("decode %s: not a sha256 digest", KeySchemaInput)
	}
	if fp.LinkerInput != nil && !isDigest(*fp.LinkerInput) {
		return Fingerprint{}, fmt.Errorf("decode %s: not a sha256 digest", KeyLinkerInput)
	}
	return fp, nil
}

func isDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
