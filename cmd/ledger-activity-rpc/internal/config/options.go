//nolint:mnd // lots of magic constants due to default values
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
)

const defaultHTTPEndpoint = "localhost:8000"

// LogFormat selects how log lines are rendered.
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

func (f LogFormat) String() string {
	if f == LogFormatJSON {
		return "json"
	}
	return "text"
}

func parseLogFormat(option *Option, i interface{}) error {
	switch v := i.(type) {
	case nil:
		return nil
	case string:
		switch v {
		case "text":
			*option.ConfigKey.(*LogFormat) = LogFormatText
		case "json":
			*option.ConfigKey.(*LogFormat) = LogFormatJSON
		default:
			return fmt.Errorf("invalid log format: %q", v)
		}
	case LogFormat:
		*option.ConfigKey.(*LogFormat) = v
	default:
		return fmt.Errorf("could not parse %s: %q", option.Name, v)
	}
	return nil
}

func parseLogLevel(option *Option, i interface{}) error {
	switch v := i.(type) {
	case nil:
		return nil
	case string:
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("could not parse %s: %w", option.Name, err)
		}
		*option.ConfigKey.(*logrus.Level) = level
	case logrus.Level:
		*option.ConfigKey.(*logrus.Level) = v
	default:
		return fmt.Errorf("could not parse %s: %q", option.Name, v)
	}
	return nil
}

func marshalStringer(option *Option) (interface{}, error) {
	return option.ConfigKey.(fmt.Stringer).String(), nil
}

//nolint:funlen
func (cfg *Config) options() Options {
	if cfg.optionsCache != nil {
		return *cfg.optionsCache
	}
	defaultLogLevel := logrus.InfoLevel
	cfg.optionsCache = &Options{
		{
			Name:      "config-path",
			EnvVar:    "LEDGER_ACTIVITY_RPC_CONFIG_PATH",
			TomlKey:   "-",
			Usage:     "File path to the toml configuration file",
			ConfigKey: &cfg.ConfigPath,
		},
		{
			Name:         "config-strict",
			EnvVar:       "LEDGER_ACTIVITY_RPC_CONFIG_STRICT",
			TomlKey:      "STRICT",
			Usage:        "Enable strict toml configuration file parsing. This will prevent unknown fields in the config toml from being parsed.",
			ConfigKey:    &cfg.Strict,
			DefaultValue: false,
		},
		{
			Name:         "endpoint",
			Usage:        "Endpoint to listen and serve on",
			ConfigKey:    &cfg.Endpoint,
			DefaultValue: defaultHTTPEndpoint,
		},
		{
			Name:      "admin-endpoint",
			Usage:     "Admin endpoint to listen and serve on. WARNING: this should not be accessible from the Internet and does not use TLS. \"\" (default) disables the admin server",
			ConfigKey: &cfg.AdminEndpoint,
		},
		{
			Name:      "ledger-server-url",
			Usage:     "URL of the ledger server JSON RPC endpoint",
			ConfigKey: &cfg.LedgerServerURL,
			Validate: func(option *Option) error {
				if err := required(option); err != nil {
					return err
				}
				if _, err := url.ParseRequestURI(cfg.LedgerServerURL); err != nil {
					return fmt.Errorf("invalid ledger server url: %w", err)
				}
				return nil
			},
		},
		{
			Name:         "ledger-request-timeout",
			Usage:        "Timeout of a single request to the ledger server",
			ConfigKey:    &cfg.LedgerRequestTimeout,
			DefaultValue: 5 * time.Second,
			Validate:     positive,
		},
		{
			Name:         "ledger-poll-interval",
			Usage:        "How often to ask the ledger server for the latest closed ledger",
			ConfigKey:    &cfg.LedgerPollInterval,
			DefaultValue: 2 * time.Second,
			Validate:     positive,
		},
		{
			Name: "connection-timeout",
			Usage: "Maximum time since the last ledger close for the ledger server connection to count as live, " +
				"and how long to wait for a reconnect",
			ConfigKey:    &cfg.ConnectionTimeout,
			DefaultValue: ledger.DefaultConnectionTimeout,
			Validate:     positive,
		},
		{
			Name:         "db-driver",
			Usage:        fmt.Sprintf("Database driver of the local record store, %q or %q", db.DriverSQLite, db.DriverPostgres),
			ConfigKey:    &cfg.DBDriver,
			DefaultValue: db.DriverSQLite,
			Validate: func(*Option) error {
				switch cfg.DBDriver {
				case db.DriverSQLite, db.DriverPostgres:
					return nil
				default:
					return fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
				}
			},
		},
		{
			Name:         "db-path",
			Usage:        "SQLite DB path, or postgres connection string when using the postgres driver",
			ConfigKey:    &cfg.DBPath,
			DefaultValue: "ledger_activity.sqlite",
			Validate:     required,
		},
		{
			Name:           "log-level",
			Usage:          "minimum log severity (debug, info, warn, error) to log",
			ConfigKey:      &cfg.LogLevel,
			CustomSetValue: parseLogLevel,
			DefaultValue:   defaultLogLevel.String(),
			MarshalTOML:    marshalStringer,
		},
		{
			Name:           "log-format",
			Usage:          "format used for output logs (json or text)",
			ConfigKey:      &cfg.LogFormat,
			CustomSetValue: parseLogFormat,
			DefaultValue:   LogFormatText.String(),
			MarshalTOML:    marshalStringer,
		},
		{
			Name:         "default-page-size",
			Usage:        "Number of records returned when the request does not ask for a number",
			ConfigKey:    &cfg.DefaultPageSize,
			DefaultValue: history.DefaultPageSize,
			Validate:     positive,
		},
		{
			Name:         "max-page-size",
			Usage:        "Maximum number of records a request may ask for",
			ConfigKey:    &cfg.MaxPageSize,
			DefaultValue: 200,
			Validate: func(option *Option) error {
				if err := positive(option); err != nil {
					return err
				}
				if cfg.MaxPageSize < cfg.DefaultPageSize {
					return fmt.Errorf("max-page-size (%d) is below default-page-size (%d)", cfg.MaxPageSize, cfg.DefaultPageSize)
				}
				return nil
			},
		},
		{
			Name:         "max-pagination-rounds",
			Usage:        "Maximum number of ledger server queries spent on filling a single page",
			ConfigKey:    &cfg.MaxPaginationRounds,
			DefaultValue: history.DefaultMaxRounds,
			Validate:     positive,
		},
		{
			Name:         "request-timeout",
			Usage:        "Maximum duration of a single JSON RPC request",
			ConfigKey:    &cfg.RequestTimeout,
			DefaultValue: 30 * time.Second,
			Validate:     positive,
		},
		{
			Name:         "sibling-cache-size",
			Usage:        "Number of (account, ledger) transaction counts cached for neighbor resolution",
			ConfigKey:    &cfg.SiblingCacheSize,
			DefaultValue: 1024,
			Validate:     positive,
		},
		{
			Name:         "cors-allowed-origins",
			Usage:        "Comma separated list of origins allowed to make cross-origin requests",
			ConfigKey:    &cfg.CORSAllowedOrigins,
			DefaultValue: []string{"*"},
		},
	}
	return *cfg.optionsCache
}
