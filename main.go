package main

import (
	"os"

	"seva-signup/core/config"
	"seva-signup/core/logger"
	"seva-signup/core/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", err)
		os.Exit(1)
	}

	if err := server.Run(cfg); err != nil {
		logger.Error("run server", err)
		os.Exit(1)
	}
}
