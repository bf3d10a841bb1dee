package main

import (
	"github.com/OFFIS-RIT/kgalign/internal/server"
	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "server",
	})
	logger.Init(consoleLogger)

	server.Init()
}
