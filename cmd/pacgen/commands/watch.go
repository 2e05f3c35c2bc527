package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craigjb/spiny/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	ParamFlags `embed:""`

	Interval time.Duration `help:"Periodic re-check interval (0 uses the config value)"`
	Debounce time.Duration `help:"Quiet period before regenerating after a change (0 uses the config value)"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, c.ParamFlags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.Interval > 0 {
		cfg.Watch.Interval = c.Interval
	}
	if c.Debounce > 0 {
		cfg.Watch.Debounce = c.Debounce
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := newSession(g, cfg)
	defer s.Close()

	req := cfg.Request()
	paths := []string{req.SVDPath, req.LinkerScriptPath}
	if _, err := os.Stat(root.Config); err == nil {
		paths = append(paths, root.Config)
	}

	run := func(ctx context.Context, reason string) error {
		// Re-read the parameters so config edits apply to the next run.
		current, err := loadConfig(root, c.ParamFlags)
		if err != nil {
			return err
		}
		if err := current.Validate(); err != nil {
			return err
		}
		_, err = s.gen.Run(ctx, current.Request())
		s.flushMetrics()
		return err
	}

	w, err := watch.New(paths, run, watch.Options{
		Debounce: cfg.Watch.Debounce,
		Interval: cfg.Watch.Interval,
		Initial:  true,
		Logger:   g.logger(),
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
