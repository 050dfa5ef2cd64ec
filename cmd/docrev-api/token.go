package main

import (
	"github.com/MarcoPoloResearchLab/docrev/internal/auth"
	"github.com/MarcoPoloResearchLab/docrev/internal/config"
	"github.com/spf13/cobra"
)

func (a *application) newTokenCommand() *cobra.Command {
	var identity auth.SessionIdentity
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint a session token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(a.viper)
			if err != nil {
				return err
			}
			issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
				SigningSecret: []byte(appConfig.SessionSigningSecret),
				Issuer:        appConfig.SessionIssuer,
				TokenTTL:      appConfig.SessionTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.IssueSessionToken(identity)
			if err != nil {
				return err
			}
			cmd.Printf("%s\n", token)
			cmd.PrintErrf("expires %s\n", formatTime(expiresAt))
			return nil
		},
	}
	issue.Flags().StringVar(&identity.UserID, "user", "", "User id to embed in the token")
	issue.Flags().StringVar(&identity.Email, "email", "", "Optional email claim")
	issue.Flags().StringVar(&identity.DisplayName, "name", "", "Optional display name claim")
	_ = issue.MarkFlagRequired("user")

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}
	cmd.AddCommand(issue)
	return cmd
}
