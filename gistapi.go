package main

import (
	"os"

	"github.com/thomiceli/gistapi/internal/cli"
)

func main() {
	if err := cli.App(); err != nil {
		os.Exit(1)
	}
}
