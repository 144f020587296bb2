package main

import (
	"os"

	"pmpv/cmd/pmpv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
