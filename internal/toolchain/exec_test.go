package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigjb/spiny/internal/foundation/errors"
)

// script writes an executable shell script standing in for a real tool.
func script(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func TestSVD2RustInvocation(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	// Records its arguments and emits both contract outputs in the cwd.
	tool := script(t, bin, "svd2rust", `echo "$@" > args.txt; echo lib > lib.rs; echo dev > device.x`)

	tc := New(Options{SVD2Rust: tool})
	require.NoError(t, tc.Compiler.Compile(context.Background(), work, "/in/dev.svd"))

	args, err := os.ReadFile(filepath.Join(work, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "-i /in/dev.svd --target riscv\n", string(args))
	assert.FileExists(t, filepath.Join(work, "lib.rs"))
	assert.FileExists(t, filepath.Join(work, "device.x"))
}

func TestFormAndRustfmtInvocation(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	form := script(t, bin, "form", `echo "$@" > form-args.txt`)
	rustfmt := script(t, bin, "rustfmt", `echo "$@" > rustfmt-args.txt`)

	tc := New(Options{Form: form, Rustfmt: rustfmt})
	require.NoError(t, tc.Splitter.Split(context.Background(), work, "/w/lib.rs", "/w/src"))
	require.NoError(t, tc.Formatter.Format(context.Background(), work, "/w/src/lib.rs"))

	got, err := os.ReadFile(filepath.Join(work, "form-args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "-i /w/lib.rs -o /w/src\n", string(got))

	got, err = os.ReadFile(filepath.Join(work, "rustfmt-args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/w/src/lib.rs\n", string(got))
}

func TestNonZeroExitIsToolError(t *testing.T) {
	bin := t.TempDir()
	tool := script(t, bin, "rustfmt", `echo "error: expected item" >&2; exit 3`)

	err := New(Options{Rustfmt: tool}).Formatter.Format(context.Background(), t.TempDir(), "lib.rs")
	require.Error(t, err)

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryTool, ce.Category())
	toolName, _ := ce.Context().GetString("tool")
	assert.Equal(t, tool, toolName)
	output, _ := ce.Context().GetString("output")
	assert.Contains(t, output, "expected item")
}

func TestMissingBinaryIsToolError(t *testing.T) {
	err := New(Options{SVD2Rust: "definitely-not-a-real-svd2rust"}).Compiler.Compile(context.Background(), t.TempDir(), "x.svd")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTool))
	assert.Contains(t, err.Error(), "definitely-not-a-real-svd2rust")
}

func TestTimeoutAbortsTool(t *testing.T) {
	bin := t.TempDir()
	tool := script(t, bin, "form", `exec sleep 5`)

	start := time.Now()
	err := New(Options{Form: tool, Timeout: 100 * time.Millisecond}).Splitter.Split(context.Background(), t.TempDir(), "a", "b")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTool))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestDefaults(t *testing.T) {
	tc := New(Options{})
	assert.Equal(t, DefaultSVD2Rust, tc.Compiler.(*SVD2Rust).Binary)
	assert.Equal(t, DefaultForm, tc.Splitter.(*Form).Binary)
	assert.Equal(t, DefaultRustfmt, tc.Formatter.(*Rustfmt).Binary)
}
