package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"labelscraper/pkg/logger"
	"labelscraper/pkg/metrics"
	"labelscraper/pkg/scraper"
)

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithFields(map[string]interface{}{
		"version": version,
		"output":  cfg.Output.File,
	}).Info("Label scraper starting")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.WithError(err).WithField("addr", cfg.Metrics.Addr).Error("Metrics server failed")
			}
		}()
	}

	s := scraper.NewFromConfig(cfg, log)
	if err := s.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.InfoWithFields("Scan interrupted, progress saved", map[string]interface{}{
				"output": cfg.Output.File,
			})
			return nil
		}
		log.WithError(err).Error("Label scan failed")
		return err
	}

	log.Info("Label scan finished")
	return nil
}
