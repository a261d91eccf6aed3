package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foxzi/campaigner/internal/contacts"
)

var (
	contactsFile   string
	backdateDays   int
	customerSource string
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Master contact list commands",
}

var contactsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import contacts into the master list",
	RunE:  runContactsImport,
}

var contactsBackdateCmd = &cobra.Command{
	Use:   "backdate",
	Short: "Set last_email_sent of every contact to N days ago",
	Long: `Set last_email_sent of every contact to N days ago. Used to make
test data eligible again under the frequency limit.`,
	RunE: runContactsBackdate,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Public email provider domain commands",
}

var providersImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import provider domains, one per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersImport,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider domains",
	RunE:  runProvidersList,
}

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Existing customer commands",
}

var customersImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import existing customer emails, one per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomersImport,
}

func init() {
	contactsImportCmd.Flags().StringVar(&contactsFile, "file", "", "Contacts file, local path or s3://bucket/key (default: intake.contacts_file)")
	contactsBackdateCmd.Flags().IntVar(&backdateDays, "days", 15, "Days in the past")
	customersImportCmd.Flags().StringVar(&customerSource, "source", "import", "Source tag stored with each customer")

	contactsCmd.AddCommand(contactsImportCmd, contactsBackdateCmd)
	providersCmd.AddCommand(providersImportCmd, providersListCmd)
	customersCmd.AddCommand(customersImportCmd)
	rootCmd.AddCommand(contactsCmd, providersCmd, customersCmd)
}

func runContactsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	file := contactsFile
	if file == "" {
		file = a.Config().Intake.ContactsFile
	}

	loader, err := a.Loader(ctx)
	if err != nil {
		return err
	}
	records, err := loader.Load(ctx, file)
	if err != nil {
		return err
	}

	stats, err := a.Contacts().Import(ctx, records)
	if err != nil {
		return err
	}

	fmt.Printf("Import complete\n")
	fmt.Printf("  Processed:        %d\n", stats.Processed)
	fmt.Printf("  Imported:         %d\n", stats.Imported)
	fmt.Printf("  Updated:          %d\n", stats.Updated)
	fmt.Printf("  Skipped no email: %d\n", stats.SkippedNoEmail)
	fmt.Printf("  Invalid email:    %d\n", stats.InvalidEmail)
	fmt.Printf("  Errors:           %d\n", stats.Errors)
	return nil
}

func runContactsBackdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Contacts().Backdate(ctx, backdateDays)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %d contacts to %d days ago\n", n, backdateDays)
	return nil
}

func runProvidersImport(cmd *cobra.Command, args []string) error {
	lines, err := readListFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Contacts().ImportProviders(ctx, lines)
	if err != nil {
		return err
	}
	printReferenceStats("provider domains", stats)
	return nil
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	domains, err := a.Store().ListProviderDomains(ctx)
	if err != nil {
		return err
	}
	sort.Strings(domains)
	for _, d := range domains {
		fmt.Println(d)
	}
	return nil
}

func runCustomersImport(cmd *cobra.Command, args []string) error {
	lines, err := readListFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Contacts().ImportCustomers(ctx, lines, customerSource)
	if err != nil {
		return err
	}
	printReferenceStats("customers", stats)
	return nil
}

func readListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return contacts.ReadList(f)
}

func printReferenceStats(what string, stats *contacts.ReferenceStats) {
	fmt.Printf("Imported %s\n", what)
	fmt.Printf("  Read:     %d\n", stats.Read)
	fmt.Printf("  Added:    %d\n", stats.Added)
	fmt.Printf("  Existing: %d\n", stats.Existing)
	fmt.Printf("  Invalid:  %d\n", stats.Invalid)
}
