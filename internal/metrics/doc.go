// Package metrics provides observability hooks for generation runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	p := pipeline.New(tc).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder keeps its own registry. A one-shot CLI run has no
// scrape endpoint, so WriteTextfile exports the registry in the node_exporter
// textfile-collector format.
package metrics
