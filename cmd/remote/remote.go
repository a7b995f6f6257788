// Package remote configures commands that talk to a running server.
package remote

import (
	"os"

	"github.com/meridian-works/meridian/pkg/client"
	"github.com/spf13/cobra"
)

const (
	ServerFlag = "server"
	TokenFlag  = "token"
)

// AddFlags registers the server and token flags on cmd and its children.
func AddFlags(cmd *cobra.Command) {
	server := os.Getenv("MERIDIAN_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	cmd.PersistentFlags().String(ServerFlag, server, "Meridian server base URL")
	cmd.PersistentFlags().String(TokenFlag, os.Getenv("MERIDIAN_TOKEN"), "Bearer token (default $MERIDIAN_TOKEN)")
}

// Client builds an API client from the flags of cmd.
func Client(cmd *cobra.Command) (*client.Client, error) {
	server, err := cmd.Flags().GetString(ServerFlag)
	if err != nil {
		return nil, err
	}
	token, err := cmd.Flags().GetString(TokenFlag)
	if err != nil {
		return nil, err
	}
	return client.New(server, client.WithToken(token)), nil
}
