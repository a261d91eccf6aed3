package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/campaigner/internal/transport"
)

var (
	sandboxCampaign string
	sandboxTo       string
	sandboxLimit    int
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Inspect messages captured by the sandbox transport",
}

var sandboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured messages",
	RunE:  runSandboxList,
}

var sandboxShowCmd = &cobra.Command{
	Use:   "show <message_id>",
	Short: "Print a captured message as sent",
	Args:  cobra.ExactArgs(1),
	RunE:  runSandboxShow,
}

var sandboxClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear captured messages",
	RunE:  runSandboxClear,
}

func init() {
	sandboxListCmd.Flags().StringVar(&sandboxCampaign, "campaign", "", "Filter by campaign")
	sandboxListCmd.Flags().StringVar(&sandboxTo, "to", "", "Filter by recipient")
	sandboxListCmd.Flags().IntVar(&sandboxLimit, "limit", 50, "Maximum number of messages")

	sandboxClearCmd.Flags().StringVar(&sandboxCampaign, "campaign", "", "Clear only this campaign")

	sandboxCmd.AddCommand(sandboxListCmd, sandboxShowCmd, sandboxClearCmd)
	rootCmd.AddCommand(sandboxCmd)
}

func runSandboxList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sb, err := a.Sandbox()
	if err != nil {
		return err
	}

	messages, err := sb.List(ctx, transport.SandboxFilter{
		Campaign: sandboxCampaign,
		To:       sandboxTo,
		Limit:    sandboxLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	if len(messages) == 0 {
		fmt.Println("No messages in sandbox")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCAMPAIGN\tTO\tSUBJECT\tSTATUS\tCAPTURED")
	for _, msg := range messages {
		status := transport.StatusAccepted
		if msg.SimulatedStatus != 0 {
			status = msg.SimulatedStatus
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			truncate(msg.ID, 8),
			msg.Campaign,
			msg.To,
			truncate(msg.Subject, 30),
			status,
			msg.CapturedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d messages\n", len(messages))

	return nil
}

func runSandboxShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sb, err := a.Sandbox()
	if err != nil {
		return err
	}

	msg, err := sb.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("message not found: %s", args[0])
	}

	os.Stdout.Write(msg.Data)
	return nil
}

func runSandboxClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sb, err := a.Sandbox()
	if err != nil {
		return err
	}

	n, err := sb.Clear(ctx, sandboxCampaign)
	if err != nil {
		return fmt.Errorf("failed to clear sandbox: %w", err)
	}
	fmt.Printf("Deleted %d messages\n", n)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
