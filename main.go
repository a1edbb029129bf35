package main

import (
	"os"

	"github.com/meganet/portal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
