package main

import (
	"os"

	"github.com/bebsworthy/logwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
