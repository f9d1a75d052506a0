package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"marketsnap/internal/config"
	"marketsnap/internal/logger"
	"marketsnap/internal/pipeline"
)

// Exit codes: 0 = snapshot written (real or, where permitted, simulated
// data); 1 = no snapshot written.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()
	log = log.With("run_id", uuid.NewString())

	p, err := pipeline.New(cfg, log)
	if err != nil {
		log.Errorf("pipeline setup: %v", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunBudget())
	defer cancel()

	if err := p.Run(ctx); err != nil {
		log.Errorf("run failed: %v", err)
		return 1
	}
	return 0
}
