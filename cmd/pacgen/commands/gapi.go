package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/craigjb/spiny/internal/config"
	"github.com/craigjb/spiny/internal/generator"
	"github.com/craigjb/spiny/internal/host"
	"github.com/craigjb/spiny/internal/logfields"
)

// GapiCmd implements the 'gapi' command: the entry point FuseSoC invokes
// with a generator input file.
type GapiCmd struct {
	Input   string `arg:"" help:"Generator input file written by FuseSoC"`
	CoreDir string `name:"core-dir" help:"Directory the resulting .core file is written to" default:"."`

	out io.Writer `kong:"-"`
}

func (c *GapiCmd) Run(g *Global, root *CLI) error {
	in, err := host.ReadInput(c.Input)
	if err != nil {
		return err
	}

	var base *config.Config
	if _, statErr := os.Stat(root.Config); statErr == nil {
		if base, err = config.Load(root.Config); err != nil {
			return err
		}
	}
	cfg := in.Config(base)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := host.NewRegistry(in.VLNV)
	s := newSession(g, cfg, generator.WithRegistrar(reg))
	defer s.Close()

	res, err := s.gen.Run(ctx, cfg.Request())
	if err != nil {
		return err
	}
	printResult(writerOr(c.out), cfg.CrateName, res)

	// A skipped run registers nothing, so the core file from the run that
	// produced the current package stays in place.
	if reg.Empty() {
		return nil
	}
	path, err := reg.WriteCore(c.CoreDir)
	if err != nil {
		return err
	}
	g.logger().Info("Wrote core file", logfields.Path(path))
	_, _ = fmt.Fprintf(writerOr(c.out), "core: %s\n", path)
	return nil
}
