package main

import (
	"os"

	"github.com/vitaliisemenov/datomic-client/pkg/logger"
)

func main() {
	cli := NewCLI(logger.NewLogger(logger.Config{Level: os.Getenv("DATOMIC_CLI_LOG_LEVEL")}))

	if err := cli.GetRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
