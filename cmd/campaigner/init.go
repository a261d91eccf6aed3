package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/foxzi/campaigner/internal/config"
)

var (
	initWriteConfig string
	initFrom        string
	initDataDir     string
	initTransport   string
	initProviders   string
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize storage",
	Long: `Create the store's collections and indexes. Safe to run repeatedly.

With --write-config a starter configuration file is written first and the
store it points at is initialized.

Examples:
  # Create buckets in the configured store
  campaigner init -c config.yaml

  # Write a sandbox configuration and initialize its store
  campaigner init --write-config config.yaml --from sales@example.com

  # Also seed the public provider domain list
  campaigner init -c config.yaml --providers providers.txt`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initWriteConfig, "write-config", "", "Write a starter config file to this path")
	initCmd.Flags().StringVar(&initFrom, "from", "", "Sender address for the starter config")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "/var/lib/campaigner", "Data directory for the starter config")
	initCmd.Flags().StringVar(&initTransport, "transport", config.TransportSandbox, "Transport for the starter config (sandbox, sendgrid, ses, smtp)")
	initCmd.Flags().StringVar(&initProviders, "providers", "", "Seed provider domains from this file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if initWriteConfig != "" {
		if initFrom == "" {
			return fmt.Errorf("--from is required with --write-config")
		}
		if !initForce {
			if _, err := os.Stat(initWriteConfig); err == nil {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", initWriteConfig)
			}
		}
		if err := os.MkdirAll(filepath.Dir(initWriteConfig), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(initWriteConfig, []byte(generateConfig()), 0600); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Printf("Configuration saved to: %s\n", initWriteConfig)
		cfgFile = initWriteConfig
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config()
	if cfg.Storage.Backend == config.BackendMongo {
		fmt.Printf("Initialized mongo database %s\n", cfg.Storage.Mongo.Database)
	} else {
		fmt.Printf("Initialized bolt store %s\n", cfg.Storage.Path)
	}

	if initProviders != "" {
		lines, err := readListFile(initProviders)
		if err != nil {
			return err
		}
		stats, err := a.Contacts().ImportProviders(ctx, lines)
		if err != nil {
			return err
		}
		printReferenceStats("provider domains", stats)
	}

	st := a.Store()
	campaigns, err := st.CountCampaigns(ctx)
	if err != nil {
		return err
	}
	suppressions, err := st.CountSuppressions(ctx)
	if err != nil {
		return err
	}
	providers, err := st.ListProviderDomains(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("  Campaigns:        %d\n", campaigns)
	fmt.Printf("  Suppressions:     %d\n", suppressions)
	fmt.Printf("  Provider domains: %d\n", len(providers))
	return nil
}

func generateRandomString(length int) string {
	bytes := make([]byte, length/2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func generateConfig() string {
	transport := ""
	switch initTransport {
	case config.TransportSendGrid:
		transport = `  type: sendgrid
  sendgrid:
    api_key: ""  # or SENDGRID_API_KEY`
	case config.TransportSES:
		transport = `  type: ses
  ses:
    region: "us-east-1"  # or AWS_REGION; keys come from the default chain`
	case config.TransportSMTP:
		transport = fmt.Sprintf(`  type: smtp
  smtp:
    addr: "localhost:587"
    username: ""
    password: ""
    dkim:
      enabled: false
      selector: "campaigner"
      domain: ""
      key_file: "%s/dkim/campaigner.key"`, initDataDir)
	default:
		transport = fmt.Sprintf(`  type: sandbox
  sandbox:
    path: "%s/sandbox.db"
    error_rate: 0`, initDataDir)
	}

	return fmt.Sprintf(`# Campaigner configuration
# Generated by: campaigner init

storage:
  backend: bolt
  path: "%s/campaigner.db"
  # backend: mongo
  # mongo:
  #   uri: "mongodb://localhost:27017"  # or MONGODB_URI
  #   database: "email_campaigns"

transport:
%s

message:
  from: "%s"
  from_name: ""
  subject: "A note from {{.From}}"
  vars:
    partner_website_url: "https://example.com"  # or PARTNER_WEBSITE_URL

qualification:
  customer_exclusion: email_or_domain
  cooldown: 336h

dispatch:
  policy: exclude_customers
  cooldown: 336h
  cooldown_scope: contact
  rate_per_second: 10

logging:
  level: "info"
  format: "json"
  redact_recipients: true

metrics:
  enabled: false
  listen_addr: ":9090"
  # pushgateway_url: "http://localhost:9091"

api:
  listen_addr: ":8080"
  api_key: "%s"
`,
		initDataDir,
		transport,
		initFrom,
		generateRandomString(32),
	)
}
