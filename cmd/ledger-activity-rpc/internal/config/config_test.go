package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.loadDefaults())

	assert.Equal(t, "localhost:8000", cfg.Endpoint)
	assert.Equal(t, "", cfg.AdminEndpoint)
	assert.Equal(t, 5*time.Second, cfg.LedgerRequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.LedgerPollInterval)
	assert.Equal(t, 20*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "ledger_activity.sqlite", cfg.DBPath)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, 200, cfg.MaxPageSize)
	assert.Equal(t, 50, cfg.MaxPaginationRounds)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1024, cfg.SiblingCacheSize)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestSetValuesFromEnv(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.SetValues(envLookup(map[string]string{
		"LEDGER_SERVER_URL":    "http://localhost:5005",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "json",
		"MAX_PAGE_SIZE":        "50",
		"LEDGER_POLL_INTERVAL": "500ms",
		"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
	})))

	assert.Equal(t, "http://localhost:5005", cfg.LedgerServerURL)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, 50, cfg.MaxPageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.LedgerPollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestSetValuesRejectsBadEnv(t *testing.T) {
	var cfg Config
	require.ErrorContains(t, cfg.SetValues(envLookup(map[string]string{"LOG_FORMAT": "xml"})),
		"invalid log format")

	cfg = Config{}
	require.ErrorContains(t, cfg.SetValues(envLookup(map[string]string{"LOG_LEVEL": "loud"})),
		"could not parse log-level")
}

func TestFlagsOverrideEnv(t *testing.T) {
	var cfg Config
	cmd := &cobra.Command{}
	require.NoError(t, cfg.AddFlags(cmd))
	require.NoError(t, cmd.PersistentFlags().Parse([]string{
		"--max-page-size=75",
		"--log-level=warn",
		"--db-driver=postgres",
	}))

	require.NoError(t, cfg.SetValues(envLookup(map[string]string{
		"MAX_PAGE_SIZE": "50",
		"DB_PATH":       "postgres://localhost/activity",
	})))
	assert.Equal(t, 75, cfg.MaxPageSize)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/activity", cfg.DBPath)
}

func TestConfigFileLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
LEDGER_SERVER_URL = "http://ledger.example:5005"
MAX_PAGE_SIZE = 120
DEFAULT_PAGE_SIZE = 20
REQUEST_TIMEOUT = "10s"
CORS_ALLOWED_ORIGINS = ["https://wallet.example"]
`), 0o600))

	var cfg Config
	require.NoError(t, cfg.SetValues(envLookup(map[string]string{
		"LEDGER_ACTIVITY_RPC_CONFIG_PATH": path,
		"DEFAULT_PAGE_SIZE":               "25",
	})))

	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, "http://ledger.example:5005", cfg.LedgerServerURL)
	assert.Equal(t, 120, cfg.MaxPageSize)
	// the environment wins over the file
	assert.Equal(t, 25, cfg.DefaultPageSize)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://wallet.example"}, cfg.CORSAllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestConfigFileMissing(t *testing.T) {
	var cfg Config
	err := cfg.SetValues(envLookup(map[string]string{
		"LEDGER_ACTIVITY_RPC_CONFIG_PATH": filepath.Join(t.TempDir(), "missing.toml"),
	}))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	valid := map[string]string{"LEDGER_SERVER_URL": "http://localhost:5005"}
	withEnv := func(extra map[string]string) Config {
		env := map[string]string{}
		for k, v := range valid {
			env[k] = v
		}
		for k, v := range extra {
			env[k] = v
		}
		var cfg Config
		require.NoError(t, cfg.SetValues(envLookup(env)))
		return cfg
	}

	cfg := withEnv(nil)
	require.NoError(t, cfg.Validate())

	cfg = Config{}
	require.NoError(t, cfg.SetValues(envLookup(nil)))
	err := cfg.Validate()
	require.ErrorContains(t, err, "The following required configuration parameters are missing")
	require.ErrorContains(t, err, "ledger-server-url is required")

	cfg = withEnv(map[string]string{"LEDGER_SERVER_URL": "not a url"})
	require.ErrorContains(t, cfg.Validate(), "invalid ledger server url")

	cfg = withEnv(map[string]string{"DB_DRIVER": "mysql"})
	require.ErrorContains(t, cfg.Validate(), `unsupported db driver "mysql"`)

	cfg = withEnv(map[string]string{"DEFAULT_PAGE_SIZE": "300"})
	require.ErrorContains(t, cfg.Validate(), "max-page-size (200) is below default-page-size (300)")

	cfg = withEnv(map[string]string{"MAX_PAGINATION_ROUNDS": "0"})
	require.ErrorContains(t, cfg.Validate(), "max-pagination-rounds must be positive")

	cfg = withEnv(map[string]string{"REQUEST_TIMEOUT": "0s"})
	require.ErrorContains(t, cfg.Validate(), "request-timeout must be positive")
}
