package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newJWKSCmd(a *app) *cobra.Command {
	var asPEM bool

	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Fetch and list the project's signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			set, err := c.Keys(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asPEM {
				for _, key := range set.Keys() {
					block, err := key.PEM()
					if err != nil {
						a.log.Warn("skipping key", "kid", key.ID, "err", err)
						continue
					}
					fmt.Fprintf(out, "# kid=%s alg=%s\n%s", key.ID, key.Algorithm, block)
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KID\tALG\tKTY")
			for _, key := range set.Keys() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", key.ID, key.Algorithm, key.KeyType)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asPEM, "pem", false, "print keys as PEM public keys")
	return cmd
}
