package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stephnangue/tokenvault/credential"
)

var dumpCmd = &cobra.Command{
	Use:           "dump",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Dumps the credentials stored in a cache file",
	Long: `
Usage: tokenvault dump --file cache.json

  Prints every access token, refresh token, ID token, account and app
  metadata record in the cache file. Secrets are truncated.
`,
	RunE: runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	c, err := loadCache(cmd)
	if err != nil {
		return err
	}

	raw, err := c.Marshal()
	if err != nil {
		return err
	}
	var snap struct {
		AccessTokens  map[string]credential.AccessToken  `json:"access_tokens"`
		RefreshTokens map[string]credential.RefreshToken `json:"refresh_tokens"`
		IDTokens      map[string]credential.IDToken      `json:"id_tokens"`
		Accounts      map[string]credential.Account      `json:"accounts"`
		AppMetadata   map[string]credential.AppMetadata  `json:"app_metadata"`
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ACCESS TOKENS (%d)\n", len(snap.AccessTokens))
	fmt.Fprintln(w, "ACCOUNT\tENV\tREALM\tCLIENT\tSCOPES\tEXPIRES\tSECRET")
	for _, at := range snap.AccessTokens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			at.HomeAccountID, at.Environment, at.Realm, at.ClientID,
			credential.NormalizeScopes(at.Scopes),
			at.ExpiresOn.T.Format(time.RFC3339),
			truncate(at.Secret))
	}

	fmt.Fprintf(w, "\nREFRESH TOKENS (%d)\n", len(snap.RefreshTokens))
	fmt.Fprintln(w, "ACCOUNT\tENV\tCLIENT\tFAMILY\tSECRET")
	for _, rt := range snap.RefreshTokens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rt.HomeAccountID, rt.Environment, rt.ClientID, rt.FamilyID, truncate(rt.Secret))
	}

	fmt.Fprintf(w, "\nID TOKENS (%d)\n", len(snap.IDTokens))
	fmt.Fprintln(w, "ACCOUNT\tENV\tREALM\tCLIENT")
	for _, it := range snap.IDTokens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.HomeAccountID, it.Environment, it.Realm, it.ClientID)
	}

	fmt.Fprintf(w, "\nACCOUNTS (%d)\n", len(snap.Accounts))
	fmt.Fprintln(w, "ACCOUNT\tENV\tREALM\tUSERNAME")
	for _, a := range snap.Accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.HomeAccountID, a.Environment, a.Realm, a.PreferredUsername)
	}

	fmt.Fprintf(w, "\nAPP METADATA (%d)\n", len(snap.AppMetadata))
	fmt.Fprintln(w, "CLIENT\tENV\tFAMILY")
	for _, md := range snap.AppMetadata {
		fmt.Fprintf(w, "%s\t%s\t%s\n", md.ClientID, md.Environment, md.FamilyID)
	}
	return nil
}

func truncate(secret string) string {
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:8] + "..."
}
