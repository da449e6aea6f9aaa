package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command
type Globals struct {
	Debug   bool `help:"Enable debug logging"`
	NoColor bool `help:"Disable coloured output"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Simulate SimulateCmd      `cmd:"" help:"Run a batch of sonar searches and compare with theory"`
	Theory   TheoryCmd        `cmd:"" help:"Print the theoretical hit distribution"`
	Play     PlayCmd          `cmd:"" help:"Play the prediction game in the terminal"`
	Serve    ServeCmd         `cmd:"" help:"Run the HTTP and websocket API"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("uboat"),
		kong.Description("U-boat sonar search simulator"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	configureColor(cli.NoColor)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
