// tokenvault is an offline inspection tool for serialized token caches:
// it can dump a cache file, list its accounts and remove an account with
// the full credential cascade, without talking to any identity provider.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stephnangue/tokenvault/cache"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/logger"
)

var (
	flagFile    string
	flagSealKey string

	rootCmd = &cobra.Command{
		Use:   "tokenvault",
		Short: "Inspect and edit serialized token cache files",
		Long: `
Usage: tokenvault <subcommand> [options]

  tokenvault operates on serialized token cache files offline: dump the
  stored credentials, list accounts, or remove an account and every
  credential that belongs to it.

  Dump a cache file:

      $ tokenvault dump --file cache.json

  List the accounts in a sealed cache:

      $ tokenvault accounts list --file cache.bin --seal-key <base64 key>
`,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "path to the serialized cache file")
	rootCmd.PersistentFlags().StringVar(&flagSealKey, "seal-key", "", "base64 AES key for sealed cache files")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(accountsCmd)
}

// loadCache builds an engine instance from the cache file, opening the
// seal when a key is given.
func loadCache(cmd *cobra.Command) (*cache.Cache, error) {
	if flagFile == "" {
		return nil, fmt.Errorf("--file is required")
	}
	data, err := os.ReadFile(flagFile)
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	cfg := cache.DefaultConfig()
	cfg.Logger = logger.NewNop()
	c, err := cache.New(cfg)
	if err != nil {
		return nil, err
	}

	if flagSealKey != "" {
		key, err := base64.StdEncoding.DecodeString(flagSealKey)
		if err != nil {
			return nil, fmt.Errorf("decoding seal key: %w", err)
		}
		opener, err := external.NewSealedAESGCM(c, key)
		if err != nil {
			return nil, err
		}
		if err := opener.Open(cmd.Context(), data); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.Unmarshal(data); err != nil {
		return nil, err
	}
	return c, nil
}

// writeCache persists the engine state back to the cache file, resealing
// when a key is given.
func writeCache(cmd *cobra.Command, c *cache.Cache) error {
	var data []byte
	var err error
	if flagSealKey != "" {
		key, kerr := base64.StdEncoding.DecodeString(flagSealKey)
		if kerr != nil {
			return fmt.Errorf("decoding seal key: %w", kerr)
		}
		sealer, serr := external.NewSealedAESGCM(c, key)
		if serr != nil {
			return serr
		}
		data, err = sealer.Seal(cmd.Context())
	} else {
		data, err = c.Marshal()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(flagFile, data, 0o600)
}
