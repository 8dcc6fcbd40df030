package main

import (
	"os"

	"github.com/kiwicki/asgardbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
