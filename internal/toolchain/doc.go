// Package toolchain defines the capabilities the transformation pipeline
// consumes: a schema compiler, a source splitter and a formatter. The default
// implementations invoke svd2rust, form and rustfmt; tests substitute fakes.
//
// Contract:
//
//	SchemaCompiler.Compile(ctx, workDir, svdPath)      -> leaves lib.rs and device.x in workDir
//	SourceSplitter.Split(ctx, workDir, libRS, outDir)  -> populates outDir
//	Formatter.Format(ctx, workDir, entryFile)          -> rewrites entryFile in place
//
// Implementations report only process-level failures. Checking that the
// declared outputs exist is the pipeline's job.
package toolchain
