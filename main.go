package main

import (
	"os"

	"github.com/joho/godotenv"

	"nolcrawler/cmd"
	"nolcrawler/logger"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	if err := cmd.Execute(); err != nil {
		logger.Default.Error().Err(err).Msg("Crawl failed")
		os.Exit(1)
	}
}
