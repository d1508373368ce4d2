// Command tfcctl is operator tooling for tfc: it signs test payloads,
// inspects session tokens and checks the configured bot token.
package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		os.Stderr.WriteString("tfcctl: load .env: " + err.Error() + "\n")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
