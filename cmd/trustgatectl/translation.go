package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/suleymanmyradov/trustgate/internal/admin"
)

func newTranslationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translation-config",
		Short: "Manage claim-translation config versions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List translation config versions",
		RunE: func(c *cobra.Command, args []string) error {
			var resp []admin.TranslationVersionResponse
			if err := call("GET", "/translation-config", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	activateCmd := &cobra.Command{
		Use:   "activate [version]",
		Short: "Activate a translation config version",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return err
			}
			return call("POST", "/translation-config/"+args[0]+"/activate", nil, nil)
		},
	}

	var rolledBackBy string
	rollbackCmd := &cobra.Command{
		Use:   "rollback [version]",
		Short: "Roll back to a previously active translation config version",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return err
			}
			body := map[string]string{"rolledBackBy": rolledBackBy}
			return call("POST", "/translation-config/"+args[0]+"/rollback", body, nil)
		},
	}
	rollbackCmd.Flags().StringVar(&rolledBackBy, "by", "trustgatectl", "operator recorded as performing the rollback")

	cmd.AddCommand(listCmd, activateCmd, rollbackCmd)
	return cmd
}
