package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/foxzi/campaigner/internal/campaign"
	"github.com/foxzi/campaigner/internal/models"
)

var (
	campaignName          string
	campaignFile          string
	campaignHistoryStatus string
	campaignShowRecipient bool
	purgeForce            bool
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Campaign commands",
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Qualify a candidate file into a new campaign",
	RunE:  runCampaignCreate,
}

var campaignSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a ready campaign",
	Long: `Send a campaign in status ready. A campaign interrupted while sending
can be resumed with the same command.

Recipients whose address no longer validates are recorded as failed with
reason invalid_email_format and also counted under "invalid email", so such a
run ends completed_with_errors.`,
	RunE: runCampaignSend,
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE:  runCampaignList,
}

var campaignShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show campaign details",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignShow,
}

var campaignHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show send history of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignHistory,
}

var campaignPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all campaigns",
	Long:  `Delete every campaign document. Contacts and send history are kept.`,
	RunE:  runCampaignPurge,
}

func init() {
	campaignCreateCmd.Flags().StringVar(&campaignName, "campaign", "", "Campaign name (required)")
	campaignCreateCmd.Flags().StringVar(&campaignFile, "file", "", "Candidate file, local path or s3://bucket/key (default: intake.default_file)")
	campaignCreateCmd.MarkFlagRequired("campaign")

	campaignSendCmd.Flags().StringVar(&campaignName, "campaign", "", "Campaign name (required)")
	campaignSendCmd.MarkFlagRequired("campaign")

	campaignShowCmd.Flags().BoolVar(&campaignShowRecipient, "recipients", false, "Print the recipient list")
	campaignHistoryCmd.Flags().StringVar(&campaignHistoryStatus, "status", "", "Filter by status (sent, skipped, failed)")
	campaignPurgeCmd.Flags().BoolVar(&purgeForce, "force", false, "Skip confirmation")

	campaignCmd.AddCommand(campaignCreateCmd, campaignSendCmd, campaignListCmd, campaignShowCmd, campaignHistoryCmd, campaignPurgeCmd)
	rootCmd.AddCommand(campaignCmd)
}

func runCampaignCreate(cmd *cobra.Command, args []string) error {
	if err := campaign.ValidateName(campaignName); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	file := campaignFile
	if file == "" {
		file = a.Config().Intake.DefaultFile
	}

	loader, err := a.Loader(ctx)
	if err != nil {
		return err
	}
	records, err := loader.Load(ctx, file)
	if err != nil {
		return err
	}

	stats, err := a.Assembler().Assemble(ctx, campaignName, records)
	if err != nil {
		return err
	}
	a.PushMetrics()

	printAssemblyStats(os.Stdout, campaignName, stats)
	return nil
}

func runCampaignSend(cmd *cobra.Command, args []string) error {
	if err := campaign.ValidateName(campaignName); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.Dispatcher(ctx)
	if err != nil {
		return err
	}

	stats, err := d.Dispatch(ctx, campaignName)
	a.PushMetrics()
	if err != nil {
		return err
	}

	fmt.Printf("Campaign %s dispatched\n\n", campaignName)
	printDispatchStats(os.Stdout, stats)
	return nil
}

func runCampaignList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Campaigns().List(ctx)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No campaigns")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tRECIPIENTS\tSENT\tFAILED\tSKIPPED\tCREATED")
	for _, c := range list {
		sent, failed, skipped := "-", "-", "-"
		if c.Statistics != nil {
			sent = fmt.Sprint(c.Statistics.Sent)
			failed = fmt.Sprint(c.Statistics.Failed)
			skipped = fmt.Sprint(c.Statistics.Skipped)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			c.Name, c.Status, c.TotalRecipients, sent, failed, skipped,
			c.CreatedDate.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runCampaignShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.Campaigns().Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Name:       %s\n", c.Name)
	fmt.Printf("Status:     %s\n", c.Status)
	fmt.Printf("Created:    %s\n", c.CreatedDate.Local().Format(time.DateTime))
	if c.CompletedDate != nil {
		fmt.Printf("Completed:  %s\n", c.CompletedDate.Local().Format(time.DateTime))
	}
	fmt.Printf("Recipients: %d\n", c.TotalRecipients)

	if c.ValidationStats != nil {
		fmt.Println()
		printAssemblyStats(os.Stdout, c.Name, c.ValidationStats)
	}
	if c.Statistics != nil {
		fmt.Println()
		printDispatchStats(os.Stdout, c.Statistics)
	}
	if campaignShowRecipient {
		fmt.Println()
		for _, r := range c.Recipients {
			fmt.Println(r)
		}
	}
	return nil
}

func runCampaignHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.Campaigns().History(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tEMAIL\tSTATUS\tDETAIL")
	for _, rec := range records {
		if campaignHistoryStatus != "" && string(rec.Status) != campaignHistoryStatus {
			continue
		}
		detail := rec.Error
		if detail == "" {
			detail = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.SentDate.Local().Format(time.DateTime), rec.ContactEmail, rec.Status, detail)
	}
	return w.Flush()
}

func runCampaignPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.Campaigns()
	count, err := svc.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println("No campaigns to delete")
		return nil
	}

	if !purgeForce {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to delete %d campaigns without a terminal (use --force)", count)
		}
		if !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete all %d campaigns? [y/N]: ", count)) {
			fmt.Println("Aborted")
			return nil
		}
	}

	deleted, err := svc.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d campaigns\n", deleted)
	return nil
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printAssemblyStats(w io.Writer, name string, stats *models.AssemblyStats) {
	if stats.Created {
		fmt.Fprintf(w, "Campaign %s created\n", name)
	} else {
		fmt.Fprintf(w, "Campaign %s not created: no recipients admitted\n", name)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Processed:\t%d\n", stats.TotalProcessed)
	fmt.Fprintf(tw, "  Accepted:\t%d\n", stats.Accepted)
	fmt.Fprintf(tw, "  New to master list:\t%d\n", stats.NewToMaster)
	fmt.Fprintf(tw, "  Already in master list:\t%d\n", stats.ExistingInMaster)
	fmt.Fprintf(tw, "  Provider domains:\t%d\n", stats.ProviderDomain)
	fmt.Fprintf(tw, "  Business domains:\t%d\n", stats.BusinessDomain)

	reasons := make([]string, 0, len(stats.Rejected))
	for reason := range stats.Rejected {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(tw, "  Rejected %s:\t%d\n", reason, stats.Rejected[reason])
	}
	tw.Flush()
}

func printDispatchStats(w io.Writer, stats *models.DispatchStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Total:\t%d\n", stats.Total)
	fmt.Fprintf(tw, "  Sent:\t%d\n", stats.Sent)
	fmt.Fprintf(tw, "  Failed:\t%d\n", stats.Failed)
	fmt.Fprintf(tw, "  Skipped:\t%d\n", stats.Skipped)
	fmt.Fprintf(tw, "    suppressed:\t%d\n", stats.SkippedSuppressed)
	fmt.Fprintf(tw, "    existing customer:\t%d\n", stats.SkippedExistingCustomer)
	fmt.Fprintf(tw, "    domain policy:\t%d\n", stats.SkippedDomainPolicy)
	fmt.Fprintf(tw, "    frequency limit:\t%d\n", stats.SkippedFrequency)
	fmt.Fprintf(tw, "  Invalid email:\t%d\n", stats.InvalidEmail)
	tw.Flush()
}
