package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/strideworks/trainalytics/internal/config"
	"github.com/strideworks/trainalytics/internal/learning/engine"
	"github.com/strideworks/trainalytics/pkg/logger"
)

func main() {
	inputPath := flag.String("input", "", "path to a JSON file of training observations")
	configPath := flag.String("config", "", "path to a trainalytics YAML config file")
	target := flag.String("target", string(engine.TargetDistance), "target variable: distance, fatigue or readiness")
	quick := flag.Bool("quick", false, "quick simulation: skip Bayesian and time-series members")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if *inputPath == "" {
		zapLogger.Fatal("Missing required -input flag")
	}
	observations, err := readObservations(*inputPath)
	if err != nil {
		zapLogger.Fatal("Failed to read observations", zap.Error(err))
	}

	opts := engine.Options{
		DisableBayesian:   *quick,
		DisableTimeSeries: *quick,
	}
	if *quick {
		// The regression member runs alone in quick mode.
		cfg.Ensemble.MinMembers = 1
	}
	controller := engine.NewController(*cfg, zapLogger.Sugar())
	result, err := controller.RunWithOptions(observations, engine.TargetVariable(*target), opts)
	if err != nil {
		zapLogger.Fatal("Learning loop failed", zap.Error(err))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		zapLogger.Fatal("Failed to encode result", zap.Error(err))
	}
}

func readObservations(path string) ([]engine.TrainingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var observations []engine.TrainingData
	if err := json.Unmarshal(data, &observations); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return observations, nil
}
