package main

import (
	"log"

	"github.com/ewaproduct/ewabot/app/bot"
	coreconfig "github.com/ewaproduct/ewabot/core/config"
	corecmd "github.com/ewaproduct/ewabot/core/cmd"
)

func main() {
	if err := coreconfig.LoadDotenv(); err != nil {
		log.Fatalf("env: %v", err)
	}
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        bot.LoadConfig,
		Bootstrap:         bot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
