package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/soundboard/internal/app"
	"github.com/dmitrijs2005/soundboard/internal/buildinfo"
	"github.com/dmitrijs2005/soundboard/internal/config"
	"github.com/dmitrijs2005/soundboard/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	a, err := app.NewApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
