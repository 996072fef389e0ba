// Package logger provides a structured logging interface for the label scraper.
//
// It wraps zerolog with a small field-oriented API:
// - Debug, Info, Warn and Error levels plus "disabled"
// - Structured logging with fields
// - Plain console output, progress on stdout and warnings/errors on stderr
// - Optional append-only log file
// - A process-wide logger set up once by the scan command
//
// Basic Usage:
//
//	import "labelscraper/pkg/logger"
//
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/labelscraper.log",
//	}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger()
//	log.Info("Label scraper starting")
//	log.WithField("label_id", 42).Info("Label stored")
//	log.WithError(err).Error("Error appending result to file")
//
// Advanced Usage:
//
//	scan := logger.GetLogger().WithField("component", "scraper")
//
//	scan.InfoWithFields("Label scan complete", map[string]interface{}{
//	    "processed": 1200,
//	    "written":   310,
//	    "duration":  time.Minute * 20,
//	})
//
// NewTestLogger records entries in memory for assertions in tests.
package logger
