package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"labelscraper/pkg/auth"
)

var loginKey string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Discogs credentials",
	Long: `Manage Discogs API credentials stored outside the environment.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

API_KEY and API_SECRET always take precedence over stored credentials.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a Discogs consumer key and secret",
	Long: `Store a Discogs consumer key and secret for the selected profile.

Create an application at https://www.discogs.com/settings/developers to get
a consumer key and secret. The secret is read without echo when stdin is a
terminal.`,
	Example: `  # Interactive login
  labelscraper auth login

  # Store a second profile
  labelscraper auth login --profile backup --key abc123`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials for the selected profile",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credentials for the selected profile",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVar(&loginKey, "key", "", "consumer key (prompted when omitted)")
}

func selectedProfile() string {
	if profile != "" {
		return profile
	}
	if env := strings.TrimSpace(os.Getenv("LABELSCRAPER_PROFILE")); env != "" {
		return env
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	key := strings.TrimSpace(loginKey)
	if key == "" {
		fmt.Fprint(out, "Discogs consumer key: ")
		key, err = readLine(reader)
		if err != nil {
			return fmt.Errorf("failed to read consumer key: %w", err)
		}
	}

	fmt.Fprint(out, "Discogs consumer secret: ")
	secret, err := readSecret(cmd, reader)
	if err != nil {
		return fmt.Errorf("failed to read consumer secret: %w", err)
	}

	creds := &auth.Credentials{
		Profile: selectedProfile(),
		Key:     key,
		Secret:  secret,
	}
	if err := manager.Store(creds); err != nil {
		return err
	}

	fmt.Fprintf(out, "Credentials saved for profile %q\n", creds.Profile)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := selectedProfile()
	if err := manager.Delete(name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Credentials removed for profile %q\n", name)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := cmd.OutOrStdout()
	name := selectedProfile()
	creds, err := manager.Retrieve(name)
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		fmt.Fprintf(out, "No credentials stored for profile %q\n", name)
		fmt.Fprintln(out, "Run 'labelscraper auth login' to add them")
		return nil
	}
	if err != nil {
		return err
	}

	masked := auth.Sanitize(creds)
	fmt.Fprintf(out, "Profile: %s\n", masked.Profile)
	fmt.Fprintf(out, "  Key: %s\n", masked.Key)
	fmt.Fprintf(out, "  Secret: %s\n", masked.Secret)
	fmt.Fprintf(out, "  Saved: %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
	return nil
}

func readLine(reader *bufio.Reader) (string, error) {
	input, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads without echo from a terminal and falls back to a plain line otherwise
func readSecret(cmd *cobra.Command, reader *bufio.Reader) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return readLine(reader)
}
