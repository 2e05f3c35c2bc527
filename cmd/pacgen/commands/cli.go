package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/craigjb/spiny/internal/config"
	"github.com/craigjb/spiny/internal/toolchain"
)

// Global carries dependencies shared by subcommands.
type Global struct {
	Logger *slog.Logger
	// Toolchain overrides the exec-backed tools; tests inject fakes here.
	Toolchain *toolchain.Toolchain
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"pacgen.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" help:"Generate the crate if its inputs changed"`
	Gapi     GapiCmd     `cmd:"" help:"Run as a FuseSoC generator"`
	Status   StatusCmd   `cmd:"" help:"Report whether the crate is up to date without running tools"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate whenever inputs change"`
	History  HistoryCmd  `cmd:"" help:"List recent generation runs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// ParamFlags overrides the generation parameters from the config file.
type ParamFlags struct {
	CrateName    string `name:"crate-name" help:"Package name"`
	CrateVersion string `name:"crate-version" help:"Package version"`
	Output       string `name:"output" short:"o" help:"Destination package directory"`
	SVD          string `name:"svd" help:"Register description (SVD) file"`
	LinkerScript string `name:"linker-script" help:"Optional linker script copied to pac.x"`
}

func (p ParamFlags) parameters() config.Parameters {
	return config.Parameters{
		CrateName:        p.CrateName,
		CrateVersion:     p.CrateVersion,
		OutputPath:       p.Output,
		SVDPath:          p.SVD,
		LinkerScriptPath: p.LinkerScript,
	}
}
