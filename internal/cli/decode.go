package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
	"github.com/aussiebroadwan/supabase/pkg/slogx"
)

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [token|-]",
		Short: "Print a token's claims without verifying it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenArg(cmd, args)
			if err != nil {
				return err
			}

			ctx := slogx.WithContext(cmd.Context(), a.logger())
			claims := jwtx.DecodeUnverified(ctx, token)
			if claims == nil {
				return errors.New("token could not be decoded")
			}
			return printJSON(cmd.OutOrStdout(), claims.Map())
		},
	}
}
