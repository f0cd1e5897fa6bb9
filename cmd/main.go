package main

import (
	"os"

	"github.com/joho/godotenv"
	"quizplay/internal/cli"
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
