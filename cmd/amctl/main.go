package main

import (
	"os"

	"github.com/boddenberg/account-manager-go/internal/commands"
	"github.com/boddenberg/account-manager-go/internal/config"
)

func main() {
	_ = config.LoadDotEnv(".env")

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
