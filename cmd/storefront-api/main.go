package main

import (
	"log"
	"os"

	"github.com/aq2208/storefront-api/cmd/storefront-api/app"
	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/logging"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	logging.Init(cfg.App.Name, cfg.App.LogFile)

	a, cleanup, err := app.InitWithConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	log.Printf("storefront-api (%s) listening on %s", env, cfg.App.HTTPAddr)
	if err := a.Router.Run(cfg.App.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}
