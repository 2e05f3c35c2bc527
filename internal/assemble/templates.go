package assemble

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/craigjb/spiny/internal/foundation/errors"
)

// Manifest dependency pins written into every generated Cargo.toml.
const (
	Edition                = "2021"
	CriticalSectionVersion = "1.2.0"
	VCellVersion           = "0.1.3"
)

const manifestTemplate = `[package]
name = {{ quote .Name }}
version = {{ quote .Version }}
edition = {{ quote .Edition }}

[dependencies]
critical-section = { version = {{ quote .CriticalSection }}, optional = true }
vcell = {{ quote .VCell }}

[features]
rt = []
`

// BuildScript is the static build.rs placed in every generated package. It
// publishes pac.x and device.x to the linker search path.
const BuildScript = `use std::env;
use std::fs::File;
use std::io::Write;
use std::path::PathBuf;

fn main() {
    let out = &PathBuf::from(env::var_os("OUT_DIR").unwrap());

    File::create(out.join("pac.x"))
        .unwrap()
        .write_all(include_bytes!("pac.x"))
        .unwrap();

    File::create(out.join("device.x"))
        .unwrap()
        .write_all(include_bytes!("device.x"))
        .unwrap();

    println!("cargo:rustc-link-search={}", out.display());

    println!("cargo:rustc-link-arg=-Tpac.x");
    println!("cargo:rustc-link-arg=-Tdevice.x");
    println!("cargo:rustc-link-arg=-Tlink.x");

    println!("cargo:rerun-if-changed=pac.x");
    println!("cargo:rerun-if-changed=device.x");
    println!("cargo:rerun-if-changed=build.rs");
}
`

var manifestTpl = template.Must(template.New("Cargo.toml").
	Funcs(template.FuncMap{"quote": tomlQuote}).
	Option("missingkey=error").
	Parse(manifestTemplate))

type manifestData struct {
	Name            string
	Version         string
	Edition         string
	CriticalSection string
	VCell           string
}

// RenderManifest renders Cargo.toml for the given package identity.
func RenderManifest(name, version string) ([]byte, error) {
	var buf bytes.Buffer
	err := manifestTpl.Execute(&buf, manifestData{
		Name:            name,
		Version:         version,
		Edition:         Edition,
		CriticalSection: CriticalSectionVersion,
		VCell:           VCellVersion,
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "render Cargo.toml").Fatal().Build()
	}
	return buf.Bytes(), nil
}

var tomlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// tomlQuote renders s as a TOML basic string.
func tomlQuote(s string) string {
	return `"` + tomlEscaper.Replace(s) + `"`
}
