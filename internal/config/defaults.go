package config

import "time"

// Defaults applied by ApplyDefaults.
const (
	DefaultSVD2Rust      = "svd2rust"
	DefaultForm          = "form"
	DefaultRustfmt       = "rustfmt"
	DefaultNotifySubject = "pacgen.runs"
	DefaultWatchDebounce = 500 * time.Millisecond
	DefaultWatchInterval = 10 * time.Minute
)

// ApplyDefaults fills unset optional settings.
func (c *Config) ApplyDefaults() {
	if c.Tools.SVD2Rust == "" {
		c.Tools.SVD2Rust = DefaultSVD2Rust
	}
	if c.Tools.Form == "" {
		c.Tools.Form = DefaultForm
	}
	if c.Tools.Rustfmt == "" {
		c.Tools.Rustfmt = DefaultRustfmt
	}
	if c.Notify.URL != "" && c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNotifySubject
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = DefaultWatchDebounce
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = DefaultWatchInterval
	}
}
