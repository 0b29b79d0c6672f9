// Package config resolves and validates connection configuration from user
// arguments, environment variables, and the home-directory config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
)

// DefaultTimeoutMillis is the request timeout applied when none is supplied.
const DefaultTimeoutMillis = 60_000

// Environment variables consulted during resolution.
const (
	EnvAccountID = "DATOMIC_ACCOUNT_ID"
	EnvAccessKey = "DATOMIC_ACCESS_KEY"
	EnvSecret    = "DATOMIC_SECRET"
	EnvEndpoint  = "DATOMIC_ENDPOINT"
	EnvService   = "DATOMIC_SERVICE"
	EnvRegion    = "DATOMIC_REGION"
)

// Config is a validated connection configuration. It is immutable once
// resolved and is used as a cache key by value equality.
type Config struct {
	AccountID string `mapstructure:"account-id" validate:"required"`
	AccessKey string `mapstructure:"access-key" validate:"required"`
	Secret    string `mapstructure:"secret" validate:"required"`
	Endpoint  string `mapstructure:"endpoint" validate:"required"`
	Service   string `mapstructure:"service" validate:"required"`
	Region    string `mapstructure:"region" validate:"required"`

	// Timeout is the default per-request timeout in milliseconds.
	Timeout int `mapstructure:"timeout" validate:"gt=0"`

	// DbName names the database to connect to. Optional for the
	// administrative operations.
	DbName string `mapstructure:"db-name"`
}

var validate = validator.New()

// Resolve merges configuration sources in precedence order: built-in
// defaults, then DATOMIC_* environment variables, then the non-zero fields
// of args. When the merge is still incomplete, ~/.datomic/config is read and
// merged underneath (already-set fields win). Returns the resolved config or
// an incorrect anomaly.
func Resolve(args Config) (Config, *anomalies.Anomaly) {
	v := viper.New()
	v.SetDefault("timeout", DefaultTimeoutMillis)

	bindings := map[string]string{
		"account-id": EnvAccountID,
		"access-key": EnvAccessKey,
		"secret":     EnvSecret,
		"endpoint":   EnvEndpoint,
		"service":    EnvService,
		"region":     EnvRegion,
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	setIf(v, "account-id", args.AccountID)
	setIf(v, "access-key", args.AccessKey)
	setIf(v, "secret", args.Secret)
	setIf(v, "endpoint", args.Endpoint)
	setIf(v, "service", args.Service)
	setIf(v, "region", args.Region)
	setIf(v, "db-name", args.DbName)
	if args.Timeout > 0 {
		v.Set("timeout", args.Timeout)
	}

	cfg := Config{
		AccountID: v.GetString("account-id"),
		AccessKey: v.GetString("access-key"),
		Secret:    v.GetString("secret"),
		Endpoint:  v.GetString("endpoint"),
		Service:   v.GetString("service"),
		Region:    v.GetString("region"),
		Timeout:   v.GetInt("timeout"),
		DbName:    v.GetString("db-name"),
	}

	if Valid(cfg) {
		return cfg, nil
	}

	// Incomplete: fill the gaps from the home config file, if any.
	cfg = mergeUnder(cfg, readHomeFile())
	return Validate(cfg)
}

// Valid reports whether cfg has all six credential/endpoint fields and a
// positive timeout.
func Valid(cfg Config) bool {
	return validate.Struct(cfg) == nil
}

// Validate returns cfg unchanged when valid, otherwise an incorrect anomaly.
func Validate(cfg Config) (Config, *anomalies.Anomaly) {
	if Valid(cfg) {
		return cfg, nil
	}
	return Config{}, anomalies.Newf(anomalies.Incorrect,
		"Incomplete or invalid connection config: %s", cfg)
}

// HomeFilePath locates ~/.datomic/config.
func HomeFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".datomic", "config")
}

// readHomeFile parses the home config file, a newline-delimited key=value
// properties file. A missing file contributes nothing. A parse failure is
// reported on stderr and contributes nothing.
func readHomeFile() map[string]string {
	path := HomeFilePath()
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	hv := viper.New()
	hv.SetConfigFile(path)
	hv.SetConfigType("properties")
	if err := hv.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to parse %s\n", path)
		return nil
	}

	out := make(map[string]string)
	for _, key := range hv.AllKeys() {
		out[key] = hv.GetString(key)
	}
	return out
}

// mergeUnder fills only the empty fields of cfg from the home file values.
func mergeUnder(cfg Config, home map[string]string) Config {
	fill := func(dst *string, key string) {
		if *dst == "" {
			if val, ok := home[key]; ok {
				*dst = val
			}
		}
	}
	fill(&cfg.AccountID, "account-id")
	fill(&cfg.AccessKey, "access-key")
	fill(&cfg.Secret, "secret")
	fill(&cfg.Endpoint, "endpoint")
	fill(&cfg.Service, "service")
	fill(&cfg.Region, "region")
	fill(&cfg.DbName, "db-name")
	return cfg
}

func setIf(v *viper.Viper, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

// String renders the config for log lines and anomaly messages with the
// secret redacted.
func (c Config) String() string {
	return fmt.Sprintf(
		"{account-id: %q, access-key: %q, secret: %s, endpoint: %q, service: %q, region: %q, timeout: %d, db-name: %q}",
		c.AccountID, c.AccessKey, redact(c.Secret), c.Endpoint, c.Service, c.Region, c.Timeout, c.DbName)
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return "<redacted>"
}
