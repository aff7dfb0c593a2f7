package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dclsuite/loadplan/config"
	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/local"
	"github.com/dclsuite/loadplan/repository/remote"
	"github.com/dclsuite/loadplan/server"
	service_registry "github.com/dclsuite/loadplan/srvreg"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the TOML config file")
}

func main() {
	flag.Parse()

	// A local .env is optional; real deployments set variables directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}

	var store repository.StoreService
	switch cfg.Store.Mode {
	case config.StoreModeRemote:
		log.Printf("Connecting to record store at %s", cfg.Store.BaseURL)
		client := remote.NewClient(cfg.Store.BaseURL, cfg.Store.RequestTimeout, remote.StaticToken(cfg.Store.Token))
		store = remote.NewStore(client)
	case config.StoreModeLocal:
		log.Printf("Opening local database %s", cfg.Store.DSN)
		localStore, err := local.Open(cfg.Store.DSN)
		if err != nil {
			log.Fatalf("Opening database: %v", err)
		}
		store = localStore
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Initialize Service Registry
	sessions := service_registry.NewSessionManager(store)
	serviceRegistry := service_registry.NewServiceRegistry(sessions, logger)
	serviceRegistry.RegisterDefaultServices()

	// Start Web Server
	webserver := server.NewWebServer(cfg.HTTPPort, logger, serviceRegistry)
	if err := webserver.Start(); err != nil {
		log.Fatalf("Starting HTTP server: %v", err)
	}

	// Wait for interrupt signal to gracefully shut down the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := webserver.Shutdown(ctx); err != nil {
		logger.Printf("Shutting down HTTP web server: %v", err)
	}
	logger.Println("HTTP web server gracefully stopped")
}
