package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suleymanmyradov/trustgate/internal/admin"
)

func newServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Manage service registrations",
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		RunE: func(c *cobra.Command, args []string) error {
			var resp admin.ListServicesResponse
			if err := call("GET", fmt.Sprintf("/services?limit=%d&offset=%d", limit, offset), nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	getCmd := &cobra.Command{
		Use:   "get [serviceId]",
		Short: "Fetch one service registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var resp admin.ServiceResponse
			if err := call("GET", "/services/"+args[0], nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [serviceId]",
		Short: "Delete a service registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return call("DELETE", "/services/"+args[0], nil, nil)
		},
	}

	cmd.AddCommand(listCmd, getCmd, deleteCmd)
	return cmd
}
