// cmd/sage/main.go
package main

import (
	"github.com/joho/godotenv"

	cmd "github.com/mwiater/sage/internal/cli"
)

var (
	loadEnv    = func() error { return godotenv.Load() }
	executeCmd = cmd.Execute
)

// main loads SAGE_* overrides from a .env file when one exists and hands off to
// the cobra root command.
func main() {
	_ = loadEnv()
	executeCmd()
}
