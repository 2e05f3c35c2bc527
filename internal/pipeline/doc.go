// Package pipeline runs the three transformation stages that turn a register
// description into a formatted source tree:
//
//	schema-to-source  svd -> lib.rs + device.x
//	split             lib.rs -> src/*.rs
//	format            src/lib.rs rewritten in place
//
// Stages run strictly in order inside a scratch work directory. A stage only
// starts after the previous stage's declared outputs were verified on disk,
// and the first failure ends the run. The pipeline never touches the
// destination package; that is the assembler's job.
package pipeline
