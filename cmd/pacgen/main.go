package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/craigjb/spiny/cmd/pacgen/commands"
	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("pacgen"),
		kong.Description("Incremental generator for Rust peripheral access crates from SVD files."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli)
	if err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
