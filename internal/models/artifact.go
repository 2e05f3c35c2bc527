package models

// Artifact is a file or directory produced by a pipeline stage. Once the
// producing stage returns successfully, Path exists.
type Artifact struct {
	Stage StageName
	Path  string
}

// StageName identifies one transformation stage.
type StageName string

const (
	StageSchemaToSource StageName = "schema-to-source"
	StageSplit          StageName = "split"
	StageFormat         StageName = "format"
)

// PipelineResult carries the artifacts the Output Assembler consumes.
type PipelineResult struct {
	// SourceDir is the split source tree; its entry file is lib.rs.
	SourceDir Artifact
	// DeviceLayout is the auxiliary memory-layout description (device.x).
	DeviceLayout Artifact
}
