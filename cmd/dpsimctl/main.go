package main

import (
	"os"

	"github.com/sogno-platform/dpsim-api/cmd/dpsimctl/cmd"
	"github.com/sogno-platform/dpsim-api/internal/common"
)

func main() {
	common.ConfigureCommandLineLogging()
	root := cmd.RootCmd()
	if err := root.Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
