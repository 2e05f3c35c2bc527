package commands

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/host"
	"github.com/craigjb/spiny/internal/toolchain/toolchaintest"
)

type env struct {
	dir  string
	cli  *CLI
	fake *toolchaintest.Fake
	g    *Global
}

func newEnv(t *testing.T, extraConfig string) *env {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "soc.svd"), []byte("CTRL\nSTATUS\n"), 0o600))

	cfg := "crate_name: soc-pac\ncrate_version: 0.1.0\noutput_path: out/soc-pac\nsvd_path: soc.svd\n" + extraConfig
	cfgPath := filepath.Join(dir, "pacgen.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	fake := &toolchaintest.Fake{}
	tc := fake.Toolchain()
	return &env{
		dir:  dir,
		cli:  &CLI{Config: cfgPath},
		fake: fake,
		g:    &Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Toolchain: &tc},
	}
}

func TestGenerateCmd_GeneratesThenSkips(t *testing.T) {
	e := newEnv(t, "history:\n  path: runs.db\nmetrics:\n  textfile: metrics/pacgen.prom\n")

	var out bytes.Buffer
	cmd := &GenerateCmd{out: &out}
	require.NoError(t, cmd.Run(e.g, e.cli))
	assert.Contains(t, out.String(), "soc-pac: generated")
	assert.FileExists(t, filepath.Join(e.dir, "out", "soc-pac", "Cargo.toml"))

	out.Reset()
	require.NoError(t, cmd.Run(e.g, e.cli))
	assert.Equal(t, "soc-pac: skipped (inputs unchanged)\n", out.String())
	assert.Equal(t, 1, e.fake.Calls("compile"))

	prom, err := os.ReadFile(filepath.Join(e.dir, "metrics", "pacgen.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pacgen_run_outcomes_total{outcome="skipped"} 1`)

	var hist bytes.Buffer
	require.NoError(t, (&HistoryCmd{Crate: "soc-pac", Limit: 10, out: &hist}).Run(e.g, e.cli))
	lines := strings.Split(strings.TrimSpace(hist.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "skipped")
	assert.Contains(t, lines[2], "generated")
}

func TestGenerateCmd_FlagsOverrideConfig(t *testing.T) {
	e := newEnv(t, "")
	other := filepath.Join(t.TempDir(), "elsewhere")

	cmd := &GenerateCmd{ParamFlags: ParamFlags{CrateVersion: "2.0.0", Output: other}, out: io.Discard}
	require.NoError(t, cmd.Run(e.g, e.cli))

	manifest, err := os.ReadFile(filepath.Join(other, "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `version = "2.0.0"`)
}

func TestGenerateCmd_MissingParameters(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pacgen.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("crate_name: soc-pac\n"), 0o600))
	fake := &toolchaintest.Fake{}
	tc := fake.Toolchain()

	err := (&GenerateCmd{out: io.Discard}).Run(&Global{Toolchain: &tc}, &CLI{Config: cfgPath})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Zero(t, fake.TotalCalls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no files written besides the config")
}

func TestGenerateCmd_ExplicitConfigMustExist(t *testing.T) {
	err := (&GenerateCmd{}).Run(&Global{}, &CLI{Config: filepath.Join(t.TempDir(), "custom.yaml")})
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestStatusCmd(t *testing.T) {
	e := newEnv(t, "")

	var out bytes.Buffer
	require.NoError(t, (&StatusCmd{out: &out}).Run(e.g, e.cli))
	assert.Contains(t, out.String(), "committed:   none")
	assert.Contains(t, out.String(), "status:      stale (no persisted state)")

	require.NoError(t, (&GenerateCmd{out: io.Discard}).Run(e.g, e.cli))
	calls := e.fake.TotalCalls()

	out.Reset()
	require.NoError(t, (&StatusCmd{out: &out}).Run(e.g, e.cli))
	assert.Contains(t, out.String(), "status:      up to date")
	assert.Equal(t, calls, e.fake.TotalCalls(), "status never runs tools")
}

func TestGapiCmd_WritesCoreFile(t *testing.T) {
	e := newEnv(t, "")
	coreDir := t.TempDir()
	input := filepath.Join(t.TempDir(), "gen_input.yml")
	content := "files_root: " + e.dir + "\ngapi: \"1.0\"\nvlnv: \"::soc-pac-gen:0\"\nparameters:\n" +
		"  crate_name: soc-pac\n  crate_version: 0.1.0\n  output_path: sw/soc-pac\n  svd_path: soc.svd\n"
	require.NoError(t, os.WriteFile(input, []byte(content), 0o600))

	// No config file: parameters come from the input alone.
	cli := &CLI{Config: filepath.Join(t.TempDir(), "absent.yaml")}
	var out bytes.Buffer
	require.NoError(t, (&GapiCmd{Input: input, CoreDir: coreDir, out: &out}).Run(e.g, cli))

	data, err := os.ReadFile(filepath.Join(coreDir, "soc-pac-gen.core"))
	require.NoError(t, err)
	core, err := host.ParseCore(data)
	require.NoError(t, err)
	require.Contains(t, core.Filesets, host.DefaultFileset)
	assert.Contains(t, core.Filesets[host.DefaultFileset].Files, filepath.Join(e.dir, "sw", "soc-pac", "Cargo.toml"))
	assert.Equal(t, []string{host.DefaultFileset}, core.Targets[host.DefaultTarget].Filesets)

	// Second invocation is skipped and leaves the core file alone.
	require.NoError(t, os.Remove(filepath.Join(coreDir, "soc-pac-gen.core")))
	out.Reset()
	require.NoError(t, (&GapiCmd{Input: input, CoreDir: coreDir, out: &out}).Run(e.g, cli))
	assert.Contains(t, out.String(), "skipped")
	assert.NoFileExists(t, filepath.Join(coreDir, "soc-pac-gen.core"))
}

func TestHistoryCmd_RequiresPath(t *testing.T) {
	e := newEnv(t, "")
	err := (&HistoryCmd{}).Run(e.g, e.cli)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
