package main

import (
	"github.com/spf13/cobra"

	"github.com/suleymanmyradov/trustgate/internal/admin"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

func newSigningKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signing-keys",
		Short: "Manage the token-signing key lifecycle",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new PENDING signing key",
		RunE: func(c *cobra.Command, args []string) error {
			var resp admin.CreateSigningKeyResponse
			if err := call("POST", "/signing-keys", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Generate and activate a new key in one step, deprecating the previous ACTIVE key",
		RunE: func(c *cobra.Command, args []string) error {
			var resp admin.CreateSigningKeyResponse
			if err := call("POST", "/signing-keys/rotate", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List signing keys in the verification set",
		RunE: func(c *cobra.Command, args []string) error {
			var resp []model.SigningKey
			if err := call("GET", "/signing-keys", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Report signing-key health",
		RunE: func(c *cobra.Command, args []string) error {
			var resp admin.SigningKeyHealth
			if err := call("GET", "/signing-keys/health", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	cmd.AddCommand(
		generateCmd, rotateCmd, listCmd, healthCmd,
		lifecycleCmd("activate", "Promote a PENDING key to ACTIVE"),
		lifecycleCmd("deprecate", "Move the ACTIVE key to DEPRECATED"),
		lifecycleCmd("retire", "Retire a DEPRECATED key once its grace period has elapsed"),
		lifecycleCmd("force-retire", "Immediately retire a key regardless of grace period"),
	)
	return cmd
}

func lifecycleCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [keyId]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return call("POST", "/signing-keys/"+args[0]+"/"+action, nil, nil)
		},
	}
}
