package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pmpv/internal/cli"
	gsheet "pmpv/internal/sheets/google"
)

func newGoogleAuthCmd(a *app) *cobra.Command {
	var (
		port      string
		tokenFile string
	)
	cmd := &cobra.Command{
		Use:   "google-auth",
		Short: "Authorize Google Sheets access with a user account",
		Long: `Run the OAuth consent flow for an installed-app client and save the
resulting token. The client is read from GOOGLE_OAUTH_CLIENT_JSON or
GOOGLE_OAUTH_CLIENT_FILE; its authorized redirect URIs must include
http://localhost:PORT/callback. Point GOOGLE_OAUTH_TOKEN_FILE at the saved
token to use it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gsheet.OAuthClientConfig()
			if err != nil {
				return err
			}
			ctx, cancel := cli.SignalContext(cmd.Context(), a.logger)
			defer cancel()

			tok, err := gsheet.AuthorizeInstalledApp(ctx, cfg, port, func(url string) {
				fmt.Fprintf(a.out, "Open this URL in your browser and grant access:\n\n%s\n\n", url)
			})
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Token saved to %s\n", tokenFile)
			return nil
		},
	}
	defPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if defPort == "" {
		defPort = "8085"
	}
	cmd.Flags().StringVar(&port, "port", defPort, "local port for the OAuth redirect")
	cmd.Flags().StringVar(&tokenFile, "token-file", "token.json", "where to save the token")
	return cmd
}
