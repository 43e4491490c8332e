// cmd/ask/root.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"analytics-assistant/internal/app"
	"analytics-assistant/internal/common/config"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"
)

var (
	askConfigPath string
	askQuery      string
	askSnapshot   string
	askEntities   []string
	askCaller     string
	askModels     []string
	askTimeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer an analytics question from the command line",
	Long: `Run one question through the assistant pipeline and print the answer as JSON.

Examples:
  ask --query "How did revenue trend last quarter?" --entity loc-1
  ask --query "Summarise this view" --snapshot ./snapshot.json
  ask --config ./configs/config.yaml --query "Any events live right now?" --model primary`,
	SilenceUsage: true,
	RunE:         runAsk,
}

func init() {
	rootCmd.Flags().StringVar(&askConfigPath, "config", "", "Path to a config file (defaults to the standard lookup)")
	rootCmd.Flags().StringVarP(&askQuery, "query", "q", "", "The question to answer")
	rootCmd.Flags().StringVar(&askSnapshot, "snapshot", "", "Path to a JSON dashboard snapshot")
	rootCmd.Flags().StringSliceVar(&askEntities, "entity", nil, "Entity id in scope (repeatable)")
	rootCmd.Flags().StringVar(&askCaller, "caller", "", "Caller id used to resolve accessible entities")
	rootCmd.Flags().StringSliceVar(&askModels, "model", nil, "Ranked model override (repeatable, best first)")
	rootCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Overall deadline for the answer")
	_ = rootCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(registryCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(askConfigPath)
	if err != nil {
		return err
	}

	req := models.AnswerRequest{
		Query:        askQuery,
		EntityIDs:    askEntities,
		CallerID:     askCaller,
		RankedModels: askModels,
	}
	if askSnapshot != "" {
		snap, err := readSnapshot(askSnapshot)
		if err != nil {
			return err
		}
		req.Snapshot = snap
	}

	log := logger.NewZapAdapter(logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, "stderr"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{}, log)
	if err != nil {
		return fmt.Errorf("build assistant: %w", err)
	}
	defer a.Close()

	result, err := a.Service.Answer(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func readSnapshot(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}
