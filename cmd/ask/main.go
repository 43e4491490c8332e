// cmd/ask/main.go
package main

import (
	"os"

	"analytics-assistant/internal/common/logger"

	"go.uber.org/zap"
)

func main() {
	log := logger.New("info", "console")
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		log.Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
