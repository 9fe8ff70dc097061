package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Server   ServerCmd        `cmd:"" help:"Run the blackjack server"`
	Verify   VerifyCmd        `cmd:"" help:"Verify audit records or a seed against a deck hash"`
	Simulate SimulateCmd      `cmd:"" help:"Play hands in-process and verify every result"`
	Play     PlayCmd          `cmd:"" help:"Play a hand against a running server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjackd"),
		kong.Description("Authoritative blackjack server with provably fair shuffles"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
