package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/craigjb/spiny/internal/config"
	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/generator"
	"github.com/craigjb/spiny/internal/history"
	"github.com/craigjb/spiny/internal/logfields"
	"github.com/craigjb/spiny/internal/metrics"
	"github.com/craigjb/spiny/internal/notify"
	"github.com/craigjb/spiny/internal/toolchain"
)

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) toolchain(cfg *config.Config) toolchain.Toolchain {
	if g != nil && g.Toolchain != nil {
		return *g.Toolchain
	}
	return toolchain.New(toolchain.Options{
		SVD2Rust: cfg.Tools.SVD2Rust,
		Form:     cfg.Tools.Form,
		Rustfmt:  cfg.Tools.Rustfmt,
		Timeout:  cfg.Tools.Timeout,
	})
}

// loadBaseConfig loads the config file. A missing file is only an error when
// required is set; otherwise an empty config rooted at the working directory
// is returned.
func loadBaseConfig(path string, required bool) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) && !required {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "cannot determine working directory").Fatal().Build()
		}
		return config.FromParameters(config.Parameters{}, wd), nil
	}
	return config.Load(path)
}

// loadConfig loads the config file and overlays parameter flags. Flag paths
// are relative to the working directory.
func loadConfig(root *CLI, flags ParamFlags) (*config.Config, error) {
	cfg, err := loadBaseConfig(root.Config, root.Config != config.DefaultFile)
	if err != nil {
		return nil, err
	}
	params := flags.parameters()
	for _, p := range []*string{&params.OutputPath, &params.SVDPath, &params.LinkerScriptPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			abs, err := filepath.Abs(*p)
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryConfig, "cannot resolve path flag").Fatal().Build()
			}
			*p = abs
		}
	}
	cfg.Merge(params)
	return cfg, nil
}

// session bundles a generator with the resources it holds open.
type session struct {
	gen      *generator.Generator
	prom     *metrics.PrometheusRecorder
	textfile string
	closers  []func() error
	logger   *slog.Logger
}

// newSession wires the generator and its optional side channels. Side
// channel setup failures are logged and the channel is skipped.
func newSession(g *Global, cfg *config.Config, extra ...generator.Option) *session {
	logger := g.logger()
	s := &session{logger: logger}
	opts := []generator.Option{
		generator.WithLogger(logger),
		generator.WithWorkspace(cfg.Workspace.BaseDir, cfg.Workspace.Keep),
	}

	if cfg.Metrics.Textfile != "" {
		s.prom = metrics.NewPrometheusRecorder(nil)
		s.textfile = resolve(cfg.Root, cfg.Metrics.Textfile)
		opts = append(opts, generator.WithRecorder(s.prom))
	}

	if cfg.History.Path != "" {
		runs, err := history.Open(resolve(cfg.Root, cfg.History.Path))
		if err != nil {
			logger.Warn("Run history disabled", logfields.Error(err))
		} else {
			s.closers = append(s.closers, runs.Close)
			opts = append(opts, generator.WithRunLog(runs))
		}
	}

	if cfg.Notify.URL != "" {
		pub, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			logger.Warn("Run notifications disabled", logfields.Error(err))
		} else {
			s.closers = append(s.closers, pub.Close)
			opts = append(opts, generator.WithNotifier(pub))
		}
	}

	s.gen = generator.New(g.toolchain(cfg), append(opts, extra...)...)
	return s
}

// flushMetrics writes the textfile export when configured.
func (s *session) flushMetrics() {
	if s.prom == nil {
		return
	}
	if err := s.prom.WriteTextfile(s.textfile); err != nil {
		s.logger.Warn("Failed to write metrics textfile", logfields.Path(s.textfile), logfields.Error(err))
	}
}

func (s *session) Close() {
	s.flushMetrics()
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Warn("Failed to close resource", logfields.Error(err))
		}
	}
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}
