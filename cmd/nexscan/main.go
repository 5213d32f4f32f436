package main

import (
	"os"

	"github.com/mfaraco/nexscan/cmd/nexscan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(2)
	}
}
