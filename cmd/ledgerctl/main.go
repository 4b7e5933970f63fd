// Command ledgerctl works on the card ledgers directly through the configured
// store, without going through the HTTP server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&addUserCmd{}, "users")
	commander.Register(&addCardCmd{}, "users")
	commander.Register(&applyCmd{}, "ledger")
	commander.Register(&historyCmd{}, "ledger")
	commander.Register(&balanceCmd{}, "ledger")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
