package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/supabase/pkg/cryptox"
	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

func newKeygenCmd() *cobra.Command {
	var alg, kid string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key for local development",
		Long: `Generate a signing key for local development.

ES256 prints a PKCS8 private key followed by the JWKS to publish for it.
HS256 prints a random shared secret usable as jwt_secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			switch strings.ToUpper(alg) {
			case "ES256":
				pemKey, err := cryptox.GenerateES256Key()
				if err != nil {
					return err
				}
				signer, err := jwtx.NewSignerES256(kid, pemKey)
				if err != nil {
					return err
				}
				if _, err := out.Write(pemKey); err != nil {
					return err
				}
				return printJSON(out, jwtx.JWKS{Keys: []jwtx.JWK{signer.PublicJWK()}})

			case "HS256":
				secret, err := cryptox.GenerateSecret(cryptox.SecretSize)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, cryptox.EncodeSecret(secret))
				return err

			default:
				return fmt.Errorf("unsupported algorithm %q, want ES256 or HS256", alg)
			}
		},
	}

	cmd.Flags().StringVar(&alg, "alg", jwtx.DefaultAlgorithm, "ES256 or HS256")
	cmd.Flags().StringVar(&kid, "kid", "", "key id to publish (ES256 only)")
	return cmd
}
