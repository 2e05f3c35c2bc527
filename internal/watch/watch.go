// Package watch regenerates when inputs change. Filesystem events are
// debounced, and a periodic re-check catches changes the watcher missed.
// All runs execute on a single goroutine, one at a time.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/craigjb/spiny/internal/logfields"
)

// Trigger reasons passed to RunFunc.
const (
	ReasonInitial  = "initial"
	ReasonChange   = "change"
	ReasonInterval = "interval"
)

// RunFunc performs one generation. Errors are logged and watching continues.
type RunFunc func(ctx context.Context, reason string) error

// Options tunes a Watcher.
type Options struct {
	// Debounce delays a run until events have been quiet this long.
	Debounce time.Duration
	// Interval schedules a periodic re-check; zero disables it.
	Interval time.Duration
	// Initial runs once before waiting for events.
	Initial bool
	Logger  *slog.Logger
}

// Watcher watches input files and serializes regeneration.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	run      RunFunc
	opts     Options
	logger   *slog.Logger
	triggers chan string
}

// New creates a watcher over paths. Empty entries are ignored.
func New(paths []string, run RunFunc, opts Options) (*Watcher, error) {
	w := &Watcher{
		files:    make(map[string]struct{}),
		run:      run,
		opts:     opts,
		logger:   opts.Logger,
		triggers: make(chan string, 1),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.opts.Debounce <= 0 {
		w.opts.Debounce = 500 * time.Millisecond
	}

	seen := make(map[string]struct{})
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	if len(w.files) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	return w, nil
}

// Run blocks until ctx is canceled. Directories are watched rather than
// files so editors that replace files on save are still observed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			w.logger.Warn("Error closing file watcher", logfields.Error(err))
		}
	}()
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	sched, err := w.startScheduler()
	if err != nil {
		return err
	}
	if sched != nil {
		defer func() {
			if err := sched.Shutdown(); err != nil {
				w.logger.Warn("Error stopping scheduler", logfields.Error(err))
			}
		}()
	}

	w.logger.Info("Watching inputs", slog.Int("files", len(w.files)), slog.Duration("interval", w.opts.Interval))
	if w.opts.Initial {
		w.execute(ctx, ReasonInitial)
	}

	debounce := time.NewTimer(w.opts.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watcher")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Input change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			debounce.Reset(w.opts.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-debounce.C:
			w.execute(ctx, ReasonChange)
		case reason := <-w.triggers:
			w.execute(ctx, reason)
		}
	}
}

func (w *Watcher) startScheduler() (gocron.Scheduler, error) {
	if w.opts.Interval <= 0 {
		return nil, nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.opts.Interval),
		gocron.NewTask(w.trigger, ReasonInterval),
		gocron.WithName("pacgen-recheck"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodic re-check job: %w", err)
	}
	s.Start()
	return s, nil
}

// trigger queues a run; a run already queued absorbs it.
func (w *Watcher) trigger(reason string) {
	select {
	case w.triggers <- reason:
	default:
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) execute(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := w.run(ctx, reason)
	attrs := []any{
		logfields.Reason(reason),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())),
	}
	if err != nil {
		w.logger.Error("Regeneration failed", append(attrs, logfields.Error(err))...)
		return
	}
	w.logger.Debug("Regeneration finished", attrs...)
}
