package main

import (
	"os"

	"github.com/solatis/commissar/cmd/commissar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
