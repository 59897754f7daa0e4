// Package cli implements supactl, a command line tool for inspecting the
// signing keys and tokens of a Supabase project and calling its RPC
// functions.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/supabase/internal/config"
	"github.com/aussiebroadwan/supabase/pkg/slogx"
	"github.com/aussiebroadwan/supabase/pkg/supabase"
)

// app carries state shared by the subcommands.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	log    *slog.Logger
	errOut io.Writer
}

// NewRootCmd builds the supactl command tree. Output goes to out, logs and
// errors to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{errOut: errOut}

	root := &cobra.Command{
		Use:           "supactl",
		Short:         "Supabase project tooling",
		Long:          `supactl inspects a Supabase project's signing keys and tokens and calls its RPC functions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./supabase.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: json, text")

	root.AddCommand(
		newJWKSCmd(a),
		newDecodeCmd(a),
		newValidateCmd(a),
		newRPCCmd(a),
		newKeygenCmd(),
		newServeCmd(a),
	)
	return root
}

// Execute runs supactl with args and returns the process exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := NewRootCmd(out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return 1
	}
	return 0
}

// load reads the configuration and sets up logging. Commands that talk to
// the project call it; decode works without any configuration.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}

	a.cfg = cfg
	a.log = slogx.New(slogx.Config{
		Env:    cfg.Env,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: a.errOut,
	})
	a.log.Debug("config loaded", "config", cfg.String())
	return nil
}

// logger returns the configured logger, or one built from the flags alone.
func (a *app) logger() *slog.Logger {
	if a.log == nil {
		a.log = slogx.New(slogx.Config{
			Level:  a.logLevel,
			Format: a.logFormat,
			Output: a.errOut,
		})
	}
	return a.log
}

func (a *app) client(extra ...supabase.Option) (*supabase.Client, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	return supabase.New(a.cfg.Options, append([]supabase.Option{supabase.WithLogger(a.log)}, extra...)...)
}

// tokenArg returns the token from args, or reads it from stdin when the
// argument is "-" or missing.
func tokenArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no token given")
		}
	}
	raw, err := io.ReadAll(io.LimitReader(in, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.New("no token given")
	}
	return token, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
