package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/buildinfo"
	"github.com/dmitrijs2005/fieldsync/internal/client/app"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stderr)

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
