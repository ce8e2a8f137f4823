package main

import (
	"os"

	"github.com/marmos91/docftp/cmd/docftp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
