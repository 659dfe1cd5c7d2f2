package main

import (
	"fmt"
	"os"

	"github.com/aaronlmathis/vsflux/internal/commands"
	"github.com/aaronlmathis/vsflux/internal/version"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	version.Version = Version
	version.BuildDate = BuildDate
	version.GitCommit = GitCommit

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
