package main

import (
	"os"

	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Prefix: "bnmatch",
	})
	logger.Init(consoleLogger)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
