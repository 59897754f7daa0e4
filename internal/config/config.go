package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/aussiebroadwan/supabase/pkg/supabase"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. api_key is SUPABASE_API_KEY.
const EnvPrefix = "SUPABASE"

// DefaultConfigName is looked up as supabase.yaml in the working directory
// and in $HOME/.config/supabase when no file is given.
const DefaultConfigName = "supabase"

// Config holds the SDK options plus the settings of the command line tool.
type Config struct {
	supabase.Options `mapstructure:",squash"`

	Env       string `mapstructure:"env" default:"dev"`
	LogLevel  string `mapstructure:"log_level" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" default:"text" validate:"oneof=json text"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Load reads configuration from the file at path (or supabase.yaml when path
// is empty) and from SUPABASE_* environment variables, which win over the
// file. Defaults come from the struct tags. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Config{}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config: set defaults: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/supabase")
	}

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range keys(reflect.TypeOf(cfg)) {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	cfg.File = v.ConfigFileUsed()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the tool settings and the SDK options.
func (c *Config) Validate() error {
	if err := validate.StructExcept(c, "Options"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// String returns the configuration with secrets redacted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env:%s LogLevel:%s LogFormat:%s File:%s %s}",
		c.Env, c.LogLevel, c.LogFormat, c.File, c.Options.String())
}

// keys lists the mapstructure keys of t, descending into squashed structs.
func keys(t reflect.Type) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		name, opts, _ := strings.Cut(tag, ",")

		switch {
		case name == "-":
			continue
		case opts == "squash" && field.Type.Kind() == reflect.Struct:
			out = append(out, keys(field.Type)...)
			continue
		case name == "":
			name = toSnakeCase(field.Name)
		}
		out = append(out, name)
	}
	return out
}

// toSnakeCase converts CamelCase to snake_case
func toSnakeCase(str string) string {
	runes := []rune(str)
	var out []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				out = append(out, '_')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}
