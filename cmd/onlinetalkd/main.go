package main

import (
	"github.com/onlinetalk/onlinetalk/cmd/onlinetalkd/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		commands.Exit("%v", err)
	}
}
