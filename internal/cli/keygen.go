package cli

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/auth/apikey"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an admin API key and the hash to put in server.adminKeyHashes",
		Long: `keygen prints a new random admin key and its SHA-256 hash as JSON. Only the
hash goes into the configuration; give the key to whoever calls the admin
endpoints (POST /api/v1/reload, POST /api/v1/cache/invalidate).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := apikey.Generate()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"key":  key,
				"hash": apikey.HashKey(key),
			})
		},
	}
}
