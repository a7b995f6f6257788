package token

import (
	"fmt"
	"time"

	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/pkg/env"
	"github.com/spf13/cobra"
)

var (
	subject      string
	organization string
	admin        bool
	ttl          time.Duration
)

// Cmd is the parent command for bearer tokens.
var Cmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a bearer token signed with MERIDIAN_AUTHSECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := env.Variables()

		lifetime := vars.TokenTTL
		if ttl > 0 {
			lifetime = ttl
		}

		a, err := auth.New(vars.AuthSecret, vars.AuthIssuer, lifetime)
		if err != nil {
			return err
		}

		raw, err := a.Issue(auth.Claims{Subject: subject, Organization: organization, Admin: admin})
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), raw)
		return err
	},
}

func init() {
	issueCmd.Flags().StringVar(&subject, "subject", "", "Token subject, usually a user name")
	issueCmd.Flags().StringVar(&organization, "org", "", "Organization the token is scoped to; empty sees every organization")
	issueCmd.Flags().BoolVar(&admin, "admin", false, "Grant administrative actions")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default MERIDIAN_TOKENTTL)")
	_ = issueCmd.MarkFlagRequired("subject")

	Cmd.AddCommand(issueCmd)
}
