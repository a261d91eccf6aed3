package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/campaigner/internal/email"
)

var suppressionCmd = &cobra.Command{
	Use:   "suppression",
	Short: "Suppression list commands",
}

var suppressionSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the provider's unsubscribe list",
	Long: `Fetch the unsubscribe list from the configured provider and make the
local mirror equal to it. Addresses removed upstream are removed locally.`,
	RunE: runSuppressionSync,
}

var suppressionCheckCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Check whether an address is suppressed",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuppressionCheck,
}

func init() {
	suppressionCmd.AddCommand(suppressionSyncCmd, suppressionCheckCmd)
	rootCmd.AddCommand(suppressionCmd)
}

func runSuppressionSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	syncer, err := a.Syncer(ctx)
	if err != nil {
		return err
	}

	res, err := syncer.Sync(ctx)
	a.PushMetrics()
	if err != nil {
		return err
	}

	fmt.Printf("Suppression list synced from %s\n", a.Config().Suppression.Source)
	fmt.Printf("  Upstream: %d\n", res.Upstream)
	fmt.Printf("  Added:    %d\n", res.Added)
	fmt.Printf("  Removed:  %d\n", res.Removed)
	fmt.Printf("  Total:    %d\n", res.Total)
	return nil
}

func runSuppressionCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := email.Normalize(args[0])
	suppressed, err := a.Store().IsSuppressed(ctx, addr)
	if err != nil {
		return err
	}
	if suppressed {
		fmt.Printf("%s is suppressed\n", addr)
	} else {
		fmt.Printf("%s is not suppressed\n", addr)
	}
	return nil
}
