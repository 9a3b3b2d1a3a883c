package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stephnangue/tokenvault/cache"
	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/partition"
)

var (
	flagHomeAccountID string
	flagClientID      string

	accountsCmd = &cobra.Command{
		Use:   "accounts",
		Short: "This command groups subcommands for working with cached accounts.",
		Long: `
Usage: tokenvault accounts <subcommand> [options]

  List the accounts in a cache file:

      $ tokenvault accounts list --file cache.json

  Remove an account and all of its credentials:

      $ tokenvault accounts remove --file cache.json \
          --home-account-id uid.utid --client-id my-client
`,
	}

	accountsListCmd = &cobra.Command{
		Use:           "list",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Lists the accounts stored in a cache file",
		RunE:          runAccountsList,
	}

	accountsRemoveCmd = &cobra.Command{
		Use:           "remove",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Removes an account and every credential that belongs to it",
		RunE:          runAccountsRemove,
	}
)

func init() {
	accountsRemoveCmd.Flags().StringVar(&flagHomeAccountID, "home-account-id", "", "home account id of the account to remove")
	accountsRemoveCmd.Flags().StringVar(&flagClientID, "client-id", "", "client id whose credentials to remove")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	c, err := loadCache(cmd)
	if err != nil {
		return err
	}

	accounts, err := c.GetAccounts(cmd.Context(), cache.Request{Kind: partition.KindOther})
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts in cache")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "HOME ACCOUNT ID\tENV\tREALM\tUSERNAME\tTENANTS")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			a.HomeAccountID, a.Environment, a.Realm, a.PreferredUsername, len(a.TenantProfiles))
	}
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	if flagHomeAccountID == "" {
		return fmt.Errorf("--home-account-id is required")
	}
	if flagClientID == "" {
		return fmt.Errorf("--client-id is required")
	}

	c, err := loadCache(cmd)
	if err != nil {
		return err
	}

	err = c.RemoveAccount(cmd.Context(),
		credential.Account{HomeAccountID: flagHomeAccountID},
		cache.Request{Kind: partition.KindRemoveAccount, ClientID: flagClientID})
	if err != nil {
		return fmt.Errorf("removing account: %w", err)
	}

	if err := writeCache(cmd, c); err != nil {
		return err
	}
	fmt.Printf("Removed account %s\n", flagHomeAccountID)
	return nil
}
