package main

import (
	"os"
	"path/filepath"

	// Packages
	kong "github.com/alecthomas/kong"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type CLI struct {
	Globals
	ServerCommands
	FormCommands
	VersionCommands
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name(execName()),
		kong.Description("Parse multipart form uploads into storage backends, and read them back"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	app := NewApp(cli.Globals)
	defer app.Close()
	ctx.FatalIfErrorf(ctx.Run(app))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func execName() string {
	if name, err := os.Executable(); err == nil {
		return filepath.Base(name)
	}
	return filepath.Base(os.Args[0])
}
