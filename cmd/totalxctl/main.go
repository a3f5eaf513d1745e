// Command totalxctl runs ledger commands directly against the configured
// backend, acting as the identity given with -actor.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"totalx/internal/cli"
	"totalx/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stderr, log.ComponentApp)

	a := &app{out: os.Stdout, errOut: os.Stderr}
	a.open = func(ctx context.Context) (*session, error) {
		return openSession(ctx, cli.LoadAndValidateConfig(logger))
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range a.commands() {
		commander.Register(c, "ledger")
	}
	flag.StringVar(&a.actor, "actor", os.Getenv("TOTALX_ACTOR"), "identity issuing the command, e.g. @mario (default $TOTALX_ACTOR)")
	commander.ImportantFlag("actor")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
