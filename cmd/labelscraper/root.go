package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"labelscraper/pkg/auth"
	"labelscraper/pkg/config"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	outputFile  string
	metricsAddr string
	profile     string
)

// rootCmd runs the label scan when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "labelscraper",
	Short: "Harvest contact details for every record label on Discogs",
	Long: `labelscraper walks the Discogs label catalogue one identifier at a time and
stores the name, email, phone, URLs and profile of every label that publishes
an email address or a website.

Results are appended to a JSON array file which doubles as the resume point:
a restarted scan continues after the last stored label.

Credentials are read from API_KEY and API_SECRET (or a .env file), falling
back to the profile saved with 'labelscraper auth login'.`,
	Example: `  # Scan with credentials from the environment
  API_KEY=... API_SECRET=... OUTPUT_FILE=labels.json labelscraper

  # Sample every 10th label, starting at 50000
  STEP=10 START_OFFSET=50000 labelscraper --output labels.json

  # Expose Prometheus metrics while scanning
  labelscraper --metrics-addr :9090`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

// Execute runs the root command with a context cancelled by SIGINT or SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .labelscraper.yaml or $HOME/.config/labelscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "stored credential profile (default \"default\")")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "store file (overrides OUTPUT_FILE)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.SetVersionTemplate(`labelscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandFlags collects the flags that override configuration
func commandFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if outputFile != "" {
		flags["output-file"] = outputFile
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if profile != "" {
		flags["profile"] = profile
	}
	return flags
}

// loadConfig merges every configuration source, using the credential store for a missing key or secret
func loadConfig() (*config.Config, error) {
	return config.LoadWithCredentials(configFile, commandFlags(), lookupStoredCredentials)
}

func lookupStoredCredentials(profile string) (string, string, error) {
	manager, err := newCredentialManager()
	if err != nil {
		return "", "", err
	}
	return manager.Lookup(profile)
}

func newCredentialManager() (*auth.Manager, error) {
	dir, err := auth.ConfigDir()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(dir)
}
