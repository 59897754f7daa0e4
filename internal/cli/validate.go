package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

func newValidateCmd(a *app) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "validate [token|-]",
		Short: "Verify a token against the project's signing keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenArg(cmd, args)
			if err != nil {
				return err
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			claims, err := c.ValidateToken(cmd.Context(), token)
			if err != nil {
				if jwtx.IsUnavailable(err) {
					return fmt.Errorf("could not check token, signing keys unavailable: %w", err)
				}
				return fmt.Errorf("invalid token: %w", err)
			}
			if role != "" && !jwtx.HasRole(claims, role) {
				return fmt.Errorf("invalid token: role %q, want %q", claims.Role(), role)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "valid")
			fmt.Fprintf(out, "sub:  %s\n", claims.Subject())
			fmt.Fprintf(out, "role: %s\n", claims.Role())
			fmt.Fprintf(out, "exp:  %s\n", claims.ExpiresAt().UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "also require this role claim")
	return cmd
}
