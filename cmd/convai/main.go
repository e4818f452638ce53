package main

import (
	"os"

	"github.com/bianoble/convai/cmd/convai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
