package commands

import (
	"fmt"
	"io"

	"github.com/craigjb/spiny/internal/fingerprint"
	"github.com/craigjb/spiny/internal/state"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	ParamFlags `embed:""`

	out io.Writer `kong:"-"`
}

func (c *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, c.ParamFlags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	req := cfg.Request()
	current, err := fingerprint.Compute(req)
	if err != nil {
		return err
	}

	store := state.NewStore().WithLogger(g.logger())
	decision := store.Check(req.OutputPath, current)

	w := writerOr(c.out)
	_, _ = fmt.Fprintf(w, "crate:       %s %s\n", req.CrateName, req.CrateVersion)
	_, _ = fmt.Fprintf(w, "destination: %s\n", req.OutputPath)
	_, _ = fmt.Fprintf(w, "current:     %s\n", current.Digest())
	if stored, err := store.Load(req.OutputPath); err == nil {
		_, _ = fmt.Fprintf(w, "committed:   %s\n", stored.Digest())
	} else {
		_, _ = fmt.Fprintf(w, "committed:   none\n")
	}
	if decision.Run {
		_, _ = fmt.Fprintf(w, "status:      stale (%s)\n", decision.Reason)
	} else {
		_, _ = fmt.Fprintf(w, "status:      up to date\n")
	}
	return nil
}
