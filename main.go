package main

import (
	"os"

	"github.com/annexlab/cleanroom/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
