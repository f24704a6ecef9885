package main

import (
	"log"

	corecmd "github.com/m3rciful/spendbot/core/cmd"
	"github.com/m3rciful/spendbot/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("spendbot: %v", err)
	}
}
