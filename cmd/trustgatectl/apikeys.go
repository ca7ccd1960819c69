package main

import (
	"github.com/spf13/cobra"

	"github.com/suleymanmyradov/trustgate/internal/admin"
)

func newApiKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-keys",
		Short: "Manage API keys",
	}

	var name, description string
	var permissions []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a new API key (plaintext is shown exactly once)",
		RunE: func(c *cobra.Command, args []string) error {
			req := admin.CreateApiKeyRequest{Name: name, Description: description, Permissions: permissions}
			var resp admin.CreateApiKeyResponse
			if err := call("POST", "/api-keys", req, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "key name")
	createCmd.Flags().StringVar(&description, "description", "", "key description")
	createCmd.Flags().StringSliceVar(&permissions, "permission", nil, "permission granted to this key (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys (plaintext never shown again)",
		RunE: func(c *cobra.Command, args []string) error {
			var resp []admin.ApiKeySummary
			if err := call("GET", "/api-keys", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke [id]",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return call("DELETE", "/api-keys/"+args[0], nil, nil)
		},
	}

	cmd.AddCommand(createCmd, listCmd, revokeCmd)
	return cmd
}
