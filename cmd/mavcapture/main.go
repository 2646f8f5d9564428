package main

import (
	"os"

	"github.com/SmitUplenchwar2687/Mavtape/internal/cli"
)

func main() {
	if err := cli.NewCaptureProgram().Execute(); err != nil {
		os.Exit(1)
	}
}
