package main

import (
	"os"

	"github.com/apronworks/apron-agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
