package toolchain

import "context"

// SchemaCompiler turns a register description into a combined source file
// and a memory-layout description inside workDir.
type SchemaCompiler interface {
	Compile(ctx context.Context, workDir, svdPath string) error
}

// SourceSplitter splits a combined source file into per-module files under outDir.
type SourceSplitter interface {
	Split(ctx context.Context, workDir, sourceFile, outDir string) error
}

// Formatter normalizes a source file in place.
type Formatter interface {
	Format(ctx context.Context, workDir, file string) error
}

// Toolchain bundles the three capabilities for one run.
type Toolchain struct {
	Compiler  SchemaCompiler
	Splitter  SourceSplitter
	Formatter Formatter
}
