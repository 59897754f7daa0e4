package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/supabase/pkg/supabase"
)

func newRPCCmd(a *app) *cobra.Command {
	var (
		params string
		schema string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "rpc <procedure>",
		Short: "Call a Postgres function through PostgREST",
		Long: `Call a Postgres function through PostgREST.

Calls are made with the service-role key unless --token is given, in which
case the token is forwarded and row level security applies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in any
			if params != "" {
				if !json.Valid([]byte(params)) {
					return errors.New("--params is not valid JSON")
				}
				in = json.RawMessage(params)
			}

			c, err := a.client(supabase.WithTokenResolver(supabase.StaticToken(token)))
			if err != nil {
				return err
			}
			defer c.Close()

			rpc := c.RPC
			if token != "" {
				rpc = rpc.AsUser()
			}
			if schema != "" {
				rpc = rpc.ForSchema(schema)
			}

			var out json.RawMessage
			if err := rpc.Call(cmd.Context(), args[0], in, &out); err != nil {
				return err
			}
			if len(out) == 0 {
				return nil
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&params, "params", "", "function arguments as a JSON object")
	cmd.Flags().StringVar(&schema, "schema", "", "schema the function lives in")
	cmd.Flags().StringVar(&token, "token", "", "call as the user owning this access token")
	return cmd
}
