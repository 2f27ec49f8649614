package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/comanda/cmd/utils/internal/commands"
	"github.com/aquamarinepk/aqm"
)

const (
	appName    = "comanda-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := aqm.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := aqm.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("Demo seeding failed: %v", err)
		}
		logger.Info("Demo seeding completed successfully")

	case "clear-local":
		if err := commands.ClearLocal(ctx, config, logger); err != nil {
			log.Fatalf("Clear local data failed: %v", err)
		}
		logger.Info("Local data cleared successfully")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Comanda utility commands

Usage:
  %s <command> [options]

Commands:
  seed-demo    Submit demo orders and spread them across the board columns
  clear-local  Clear local UI data (prep times, courier history, preferences)
  version      Print version information
  help         Show this help message

Environment Variables:
  UTILS_SERVICES_ORDERS_URL     Orders backend base URL
  UTILS_LOCALSTORE_DRIVER       memory, pebble, redis or mongo (default: pebble)
  UTILS_LOCALSTORE_PEBBLE_DIR   Pebble directory (default: ./data/comanda)
  UTILS_LOG_LEVEL               Log level: debug, info, error (default: info)

Examples:
  UTILS_SERVICES_ORDERS_URL=http://localhost:8080 %s seed-demo
  %s clear-local

`, appName, appName, appName, appName)
}
