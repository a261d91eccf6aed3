package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/campaigner/internal/dnscheck"
	"github.com/foxzi/campaigner/internal/email"
)

var dnsSelector string

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Sender domain DNS commands",
}

var dnsCheckCmd = &cobra.Command{
	Use:   "check [domain]",
	Short: "Check SPF, DKIM and DMARC of the sender domain",
	Long: `Check the authentication records of a sender domain. Without an
argument the domain of message.from is checked, with the DKIM selector of
the smtp transport when signing is enabled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDNSCheck,
}

func init() {
	dnsCheckCmd.Flags().StringVar(&dnsSelector, "selector", "", "DKIM selector to check")

	dnsCmd.AddCommand(dnsCheckCmd)
	rootCmd.AddCommand(dnsCmd)
}

func runDNSCheck(cmd *cobra.Command, args []string) error {
	domain, selector := "", dnsSelector
	if len(args) == 1 {
		domain = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		domain = email.ExtractDomain(email.Normalize(cfg.Message.From))
		if selector == "" && cfg.Transport.SMTP.DKIM.Enabled {
			selector = cfg.Transport.SMTP.DKIM.Selector
		}
	}

	report, err := dnscheck.New(nil).CheckSender(cmd.Context(), domain, selector)
	if err != nil {
		return err
	}

	fmt.Printf("Sender domain: %s\n\n", report.Domain)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
	for _, r := range report.Results {
		detail := r.Message
		if detail == "" {
			detail = r.Value
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Type, r.Status, truncate(detail, 70))
	}
	w.Flush()

	if !report.Ready() {
		return fmt.Errorf("sender domain %s is not ready for campaign mail", report.Domain)
	}
	return nil
}
