package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craigjb/spiny/internal/generator"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	ParamFlags `embed:""`

	KeepWorkspace bool `name:"keep-workspace" help:"Keep the scratch workspace for debugging"`

	out io.Writer `kong:"-"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, c.ParamFlags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.KeepWorkspace {
		cfg.Workspace.Keep = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := newSession(g, cfg)
	defer s.Close()

	res, err := s.gen.Run(ctx, cfg.Request())
	if err != nil {
		return err
	}
	printResult(writerOr(c.out), cfg.CrateName, res)
	return nil
}

func printResult(w io.Writer, crate string, res *generator.Result) {
	switch res.Outcome {
	case generator.OutcomeSkipped:
		_, _ = fmt.Fprintf(w, "%s: skipped (%s)\n", crate, res.Reason)
	default:
		_, _ = fmt.Fprintf(w, "%s: generated %d files in %s\n", crate, len(res.Files), res.Duration.Round(time.Millisecond))
	}
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
