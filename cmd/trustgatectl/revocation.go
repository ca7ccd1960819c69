package main

import (
	"github.com/spf13/cobra"

	"github.com/suleymanmyradov/trustgate/internal/admin"
)

func newRevocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revocations",
		Short: "Revoke tokens and users, inspect lockouts",
	}

	var token, jti, reason string
	revokeTokenCmd := &cobra.Command{
		Use:   "revoke-token",
		Short: "Revoke a single token by jti or full token string",
		RunE: func(c *cobra.Command, args []string) error {
			req := admin.RevokeTokenRequest{Token: token, JTI: jti, Reason: reason}
			return call("POST", "/revocations/tokens", req, nil)
		},
	}
	revokeTokenCmd.Flags().StringVar(&token, "token", "", "full token string (jti/exp read without verifying signature)")
	revokeTokenCmd.Flags().StringVar(&jti, "jti", "", "bare token jti")
	revokeTokenCmd.Flags().StringVar(&reason, "reason", "", "revocation reason")

	revokeUserCmd := &cobra.Command{
		Use:   "revoke-user [userId]",
		Short: "Revoke every token previously issued to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return call("POST", "/revocations/users", admin.RevokeUserRequest{UserID: args[0]}, nil)
		},
	}

	lockoutStatusCmd := &cobra.Command{
		Use:   "lockout-status [key]",
		Short: "Check whether a key (ip/user/apikey scope) is locked out",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var resp admin.LockoutStatusResponse
			if err := call("GET", "/lockouts/"+args[0], nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}

	var lockoutReason string
	forceLockoutCmd := &cobra.Command{
		Use:   "force-lockout [key]",
		Short: "Lock out a key immediately without waiting for the failure threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return call("POST", "/lockouts/"+args[0]+"/force", admin.ForceLockoutRequest{Key: args[0], Reason: lockoutReason}, nil)
		},
	}
	forceLockoutCmd.Flags().StringVar(&lockoutReason, "reason", "", "lockout reason")

	cmd.AddCommand(revokeTokenCmd, revokeUserCmd, lockoutStatusCmd, forceLockoutCmd)
	return cmd
}
