// Package toolchaintest provides an in-process stand-in for svd2rust, form
// and rustfmt so pipeline and generator tests never touch real binaries.
package toolchaintest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/craigjb/spiny/internal/toolchain"
)

// Fake implements all three toolchain capabilities. The zero value behaves
// like a healthy toolchain; the exported knobs inject failures.
type Fake struct {
	mu    sync.Mutex
	calls map[string]int

	CompileErr  error
	SkipLibRS   bool
	SkipDeviceX bool

	SplitErr   error
	SplitEmpty bool
	SplitNoDir bool
	DropEntry  bool

	FormatErr error
}

// Toolchain returns a toolchain wired entirely to f.
func (f *Fake) Toolchain() toolchain.Toolchain {
	return toolchain.Toolchain{Compiler: f, Splitter: f, Formatter: f}
}

// Calls reports how many times the named capability ran ("compile", "split", "format").
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls reports the number of tool invocations across all stages.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Compile emits lib.rs with one module per non-empty SVD line plus device.x.
func (f *Fake) Compile(_ context.Context, workDir, svdPath string) error {
	f.record("compile")
	if f.CompileErr != nil {
		return f.CompileErr
	}
	data, err := os.ReadFile(svdPath)
	if err != nil {
		return err
	}

	var lib strings.Builder
	lib.WriteString("#![no_std]\n")
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fmt.Fprintf(&lib, "pub mod m%d {    // %s\n}\n", i, line)
	}

	if !f.SkipLibRS {
		if err := os.WriteFile(filepath.Join(workDir, "lib.rs"), []byte(lib.String()), 0o644); err != nil {
			return err
		}
	}
	if !f.SkipDeviceX {
		if err := os.WriteFile(filepath.Join(workDir, "device.x"), []byte("PROVIDE(DefaultHandler = DefaultHandler);\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Split writes every `pub mod` block of sourceFile to its own file and a
// lib.rs that declares them.
func (f *Fake) Split(_ context.Context, _ string, sourceFile, outDir string) error {
	f.record("split")
	if f.SplitErr != nil {
		return f.SplitErr
	}
	if f.SplitNoDir {
		return os.RemoveAll(outDir)
	}
	if f.SplitEmpty {
		return nil
	}
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return err
	}

	var lib strings.Builder
	lib.WriteString("#![no_std]\n")
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "pub mod ") {
			continue
		}
		name := strings.Fields(line)[2]
		fmt.Fprintf(&lib, "pub mod %s;\n", name)
		body := strings.TrimSpace(strings.TrimPrefix(line, "pub mod "+name+" {")) + "\n"
		if err := os.WriteFile(filepath.Join(outDir, name+".rs"), []byte(body), 0o644); err != nil {
			return err
		}
	}
	if f.DropEntry {
		return nil
	}
	return os.WriteFile(filepath.Join(outDir, "lib.rs"), []byte(lib.String()), 0o644)
}

// Format collapses runs of spaces in file.
func (f *Fake) Format(_ context.Context, _ string, file string) error {
	f.record("format")
	if f.FormatErr != nil {
		return f.FormatErr
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return os.WriteFile(file, []byte(strings.Join(lines, "\n")), 0o644)
}
