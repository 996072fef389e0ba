package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage labelscraper configuration.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (API_KEY, API_SECRET, OUTPUT_FILE, DELAY_MS, STEP, START_OFFSET, LABELSCRAPER_*)
  - .env files
  - Configuration file
  - Credentials saved with 'labelscraper auth login' (API key and secret only)
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to 'labelscraper.yaml' unless --config names another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with credentials masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# labelscraper configuration file
#
# Environment variables override these values:
# API_KEY, API_SECRET, OUTPUT_FILE, DELAY_MS, STEP, START_OFFSET

discogs:
  # Discogs consumer key and secret (required)
  api_key: ""
  api_secret: ""
  user_agent: "LabelScraper/1.0"
  base_url: "https://api.discogs.com"
  timeout: 30s
  # Stored credential profile used when api_key or api_secret is empty
  profile: "default"

output:
  # JSON array of extracted labels; also the resume point
  file: "labels.json"
  # Rewrite the whole file through a temporary copy on every append
  atomic: false

scan:
  # Minimum time between the starts of two label requests
  delay: 1s
  # Visit every Nth label identifier
  step: 1
  # First identifier to visit when it is beyond the stored cursor
  start_offset: 0

rate_limit:
  # Pause after an HTTP 429 before retrying the same label
  wait: 60s

logging:
  # debug, info, warn, error, disabled
  level: "info"
  file: ""

metrics:
  # Prometheus listen address, e.g. ":9090"; empty disables the endpoint
  addr: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "labelscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Add your Discogs API key and secret")
	fmt.Fprintln(out, "2. Run 'labelscraper config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start the scan with 'labelscraper'")
	return nil
}

// maskSecret keeps the first and last four characters of long values
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 8 {
		return value[:4] + "..." + value[len(value)-4:]
	}
	return "***"
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	displayCfg := *cfg
	displayCfg.Discogs.APIKey = maskSecret(displayCfg.Discogs.APIKey)
	displayCfg.Discogs.APISecret = maskSecret(displayCfg.Discogs.APISecret)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid")
	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Output file: %s\n", cfg.Output.File)
	fmt.Fprintf(out, "  Atomic appends: %t\n", cfg.Output.Atomic)
	fmt.Fprintf(out, "  Delay: %s\n", cfg.Scan.Delay)
	fmt.Fprintf(out, "  Step: %d\n", cfg.Scan.Step)
	fmt.Fprintf(out, "  Start offset: %d\n", cfg.Scan.StartOffset)
	fmt.Fprintf(out, "  Rate limit wait: %s\n", cfg.RateLimit.Wait)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
