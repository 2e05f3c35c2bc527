package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/logfields"
)

// Default tool binaries and the target handed to the schema compiler.
const (
	DefaultSVD2Rust = "svd2rust"
	DefaultForm     = "form"
	DefaultRustfmt  = "rustfmt"
	Target          = "riscv"
)

const waitDelay = 2 * time.Second

// Options configures the exec-backed toolchain.
type Options struct {
	SVD2Rust string
	Form     string
	Rustfmt  string
	// Timeout bounds each tool invocation; zero means no limit.
	Timeout time.Duration
}

// New returns a Toolchain that runs the real binaries.
func New(opts Options) Toolchain {
	r := &runner{timeout: opts.Timeout}
	return Toolchain{
		Compiler:  &SVD2Rust{Binary: orDefault(opts.SVD2Rust, DefaultSVD2Rust), run: r},
		Splitter:  &Form{Binary: orDefault(opts.Form, DefaultForm), run: r},
		Formatter: &Rustfmt{Binary: orDefault(opts.Rustfmt, DefaultRustfmt), run: r},
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// SVD2Rust invokes `svd2rust -i <svd> --target riscv` inside the work directory.
type SVD2Rust struct {
	Binary string
	run    *runner
}

func (s *SVD2Rust) Compile(ctx context.Context, workDir, svdPath string) error {
	return s.run.exec(ctx, workDir, s.Binary, "-i", svdPath, "--target", Target)
}

// Form invokes `form -i <lib.rs> -o <dir>`.
type Form struct {
	Binary string
	run    *runner
}

func (f *Form) Split(ctx context.Context, workDir, sourceFile, outDir string) error {
	return f.run.exec(ctx, workDir, f.Binary, "-i", sourceFile, "-o", outDir)
}

// Rustfmt invokes `rustfmt <file>`.
type Rustfmt struct {
	Binary string
	run    *runner
}

func (r *Rustfmt) Format(ctx context.Context, workDir, file string) error {
	return r.run.exec(ctx, workDir, r.Binary, file)
}

type runner struct {
	timeout time.Duration
}

// exec runs one tool to completion, capturing its output. A binary that
// cannot be found and a non-zero exit are both ToolInvocationErrors naming the tool.
func (r *runner) exec(ctx context.Context, dir, binary string, args ...string) error {
	if r == nil {
		r = &runner{}
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return errors.WrapError(err, errors.CategoryTool, fmt.Sprintf("%s not found (make sure it is installed and on PATH)", binary)).
			Fatal().
			WithContext("tool", binary).
			Build()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	// Grandchildren holding the output pipes must not outlive a canceled run.
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Invoking tool", logfields.Tool(binary), slog.Any("args", args), logfields.Path(dir))
	t0 := time.Now()
	err = cmd.Run()
	dur := time.Since(t0)

	outStr := strings.TrimSpace(stdout.String())
	errStr := strings.TrimSpace(stderr.String())
	if outStr != "" {
		slog.Debug("tool stdout", logfields.Tool(binary), slog.String("output", outStr))
	}
	if errStr != "" {
		slog.Debug("tool stderr", logfields.Tool(binary), slog.String("error_output", errStr))
	}

	if err != nil {
		b := errors.WrapError(err, errors.CategoryTool, fmt.Sprintf("%s failed", binary)).
			Fatal().
			WithContext("tool", binary).
			WithContext("duration", dur.Round(time.Millisecond).String())
		if ctx.Err() != nil {
			b = b.WithContext("aborted", ctx.Err().Error())
		}
		if output := combineOutput(outStr, errStr); output != "" {
			b = b.WithContext("output", output)
		}
		return b.Build()
	}
	return nil
}

func combineOutput(stdout, stderr string) string {
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}
