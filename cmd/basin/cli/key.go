package cli

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/basin/internal/config"
	"github.com/faucetdb/basin/internal/service"
)

// keyPrefix marks raw Basin API keys.
const keyPrefix = "bsn_"

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long: `Generate API keys, hash existing ones and list the keys of the configuration.
Only the SHA-256 hash of a key is stored, under auth.api_keys in basin.yaml.`,
	}

	cmd.AddCommand(newKeyGenerateCmd())
	cmd.AddCommand(newKeyHashCmd())
	cmd.AddCommand(newKeyListCmd())

	return cmd
}

// ---------- key generate ----------

func newKeyGenerateCmd() *cobra.Command {
	var (
		userID  string
		label   string
		tenants []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new API key",
		Long:  "Generate a random API key and print the auth.api_keys entry to add to basin.yaml. The raw key is shown once.",
		Example: `  basin key generate --user ci-bot --label "CI pipeline" --tenant acme
  basin key generate --user admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyGenerate(cmd.OutOrStdout(), userID, label, tenants)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id stamped into audit fields (required)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "Tenant the key may access (repeatable; omit for all)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func generateKey() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(randomBytes), nil
}

func runKeyGenerate(out io.Writer, userID, label string, tenants []string) error {
	rawKey, err := generateKey()
	if err != nil {
		return err
	}

	entry := []config.APIKeyYAML{{
		Label:   label,
		KeyHash: service.HashAPIKey(rawKey),
		UserID:  userID,
		Tenants: tenants,
	}}
	snippet, err := yaml.Marshal(map[string]interface{}{
		"auth": map[string]interface{}{"api_keys": entry},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "API Key created:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Key:  %s\n", rawKey)
	fmt.Fprintf(out, "  User: %s\n", userID)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Save this key now - it cannot be retrieved again.")
	fmt.Fprintln(out, "  Add this entry to basin.yaml:")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(snippet))
	return nil
}

// ---------- key hash ----------

func newKeyHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [key]",
		Short: "Print the hash of an existing API key",
		Long:  "Print the SHA-256 hash to store in auth.api_keys. Without an argument the key is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawKey := ""
			if len(args) == 1 {
				rawKey = args[0]
			} else {
				var err error
				if rawKey, err = readSecret(cmd.ErrOrStderr(), "API key: "); err != nil {
					return err
				}
			}
			rawKey = strings.TrimSpace(rawKey)
			if rawKey == "" {
				return fmt.Errorf("key is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.HashAPIKey(rawKey))
			return nil
		},
	}
}

// readSecret reads one line from stdin without echo when stdin is a terminal.
func readSecret(prompt io.Writer, label string) (string, error) {
	if isTerminal(os.Stdin) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read key: %w", err)
	}
	return line, nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runKeyList(cmd.OutOrStdout(), cfg.Auth.APIKeys, jsonOutput || !isTerminal(os.Stdout))
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(out io.Writer, keys []config.APIKeyYAML, jsonOutput bool) error {
	type keyRow struct {
		Hash    string   `json:"hash"`
		User    string   `json:"user"`
		Label   string   `json:"label"`
		Tenants []string `json:"tenants"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		hash := k.KeyHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows[i] = keyRow{Hash: hash, User: k.UserID, Label: k.Label, Tenants: k.Tenants}
	}

	if jsonOutput {
		return printJSON(out, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No API keys configured. Use 'basin key generate' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-14s %-16s %-24s %s\n", "HASH", "USER", "LABEL", "TENANTS")
	fmt.Fprintf(out, "%-14s %-16s %-24s %s\n", "----", "----", "-----", "-------")
	for _, k := range rows {
		tenants := "*"
		if len(k.Tenants) > 0 {
			tenants = strings.Join(k.Tenants, ",")
		}
		fmt.Fprintf(out, "%-14s %-16s %-24s %s\n", k.Hash, k.User, k.Label, tenants)
	}
	return nil
}
