package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Crate string `arg:"" optional:"" help:"Only show runs for this crate"`
	Limit int    `short:"n" help:"Maximum number of runs to show" default:"20"`

	out io.Writer `kong:"-"`
}

func (c *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadBaseConfig(root.Config, true)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.ConfigError("history.path is not configured").
			WithContext("path", root.Config).
			Build()
	}

	runs, err := history.Open(resolve(cfg.Root, cfg.History.Path))
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot open run history").Fatal().Build()
	}
	defer func() { _ = runs.Close() }()

	list, err := runs.Recent(context.Background(), c.Crate, c.Limit)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot read run history").Fatal().Build()
	}

	tw := tabwriter.NewWriter(writerOr(c.out), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tCRATE\tVERSION\tOUTCOME\tDURATION\tDETAIL")
	for _, r := range list {
		detail := r.Reason
		if r.Error != "" {
			detail = r.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Crate, r.Version, r.Outcome,
			r.Duration.Round(time.Millisecond), detail)
	}
	return tw.Flush()
}
