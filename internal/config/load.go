package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MGQL_SCHEMA_PATH.
const EnvPrefix = "MGQL"

// Load reads configuration using the process command line. Precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load() (*Config, error) {
	DefineFlags(pflag.CommandLine)
	if !pflag.Parsed() {
		pflag.Parse()
	}
	return load(pflag.CommandLine)
}

// LoadArgs parses args against fs and loads configuration from it. Flags
// already defined on fs are kept.
func LoadArgs(fs *pflag.FlagSet, args []string) (*Config, error) {
	DefineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return load(fs)
}

func load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// --- Config file ---
	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("model-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/model-graphql/")
		v.AddConfigPath("$HOME/.model-graphql")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case. Env: MGQL_STORAGE_POOL_MAX_OPEN
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlagsToViper(fs, v)

	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	// --- Secrets from files ---
	fileSecrets := []struct {
		key, fileKey, what string
	}{
		{"storage.dsn", "storage.dsn_file", "storage DSN"},
		{"auth.token_secret", "auth.token_secret_file", "token secret"},
		{"server.admin.auth_token", "server.admin.auth_token_file", "admin auth token"},
	}
	for _, s := range fileSecrets {
		if v.GetString(s.key) != "" || v.GetString(s.fileKey) == "" {
			continue
		}
		path := v.GetString(s.fileKey)
		secret, err := readSecretFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s file: %w", s.what, err)
		}
		if secret == "" {
			return nil, fmt.Errorf("%s file %q is empty", s.what, path)
		}
		v.Set(s.key, secret)
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" || f.Name == "check" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// DefineFlags registers the command line flags on fs using canonical
// snake_case keys. Calling it twice on the same set is a no-op.
func DefineFlags(fs *pflag.FlagSet) {
	if fs.Lookup("config") != nil {
		return
	}

	// Schema
	fs.String("schema.path", "", "Path to the entity description file (YAML or JSON)")
	fs.String("schema.output_mode", "", "Output mode: relay or simple")
	fs.Bool("schema.watch", false, "Rebuild the schema when the description file changes")
	fs.Duration("schema.debounce", 0, "Delay before rebuilding after a file change")

	// Storage
	fs.String("storage.driver", "", "Record store: memory or mysql")
	fs.String("storage.dsn", "", "MySQL DSN (user:pass@tcp(host:port)/db)")
	fs.String("storage.dsn_file", "", "Path to file containing the MySQL DSN (use @- for stdin)")
	fs.Int("storage.pool.max_open", 0, "Maximum open connections")
	fs.Int("storage.pool.max_idle", 0, "Maximum idle connections")
	fs.Duration("storage.pool.max_lifetime", 0, "Maximum connection lifetime")

	// Auth
	fs.String("auth.token_secret_file", "", "Path to file containing the token signing secret (use @- for stdin)")
	fs.Duration("auth.token_ttl", 0, "Lifetime of issued tokens")
	fs.String("auth.issuer", "", "Issuer claim for issued tokens")
	fs.Int("auth.bcrypt_cost", 0, "bcrypt cost for stored passwords")

	// Server
	fs.Int("server.port", 0, "HTTP server port")
	fs.Bool("server.graphiql_enabled", false, "Serve GraphiQL on GET /graphql")
	fs.Bool("server.admin.schema_reload_enabled", false, "Expose POST /admin/reload-schema")
	fs.String("server.admin.auth_token_file", "", "Path to file containing the admin bearer token")
	fs.Bool("server.rate_limit_enabled", false, "Enable the global request rate limit")
	fs.Float64("server.rate_limit_rps", 0, "Sustained requests per second")
	fs.Int("server.rate_limit_burst", 0, "Maximum burst size")
	fs.Bool("server.cors_enabled", false, "Enable CORS")
	fs.StringSlice("server.cors_allowed_origins", nil, "Allowed CORS origins")
	fs.Duration("server.shutdown_timeout", 0, "Graceful shutdown timeout")

	// Observability
	fs.String("observability.service_name", "", "Service name reported to telemetry backends")
	fs.String("observability.environment", "", "Deployment environment")
	fs.Bool("observability.metrics_enabled", true, "Expose Prometheus metrics on /metrics")
	fs.Bool("observability.tracing_enabled", false, "Export traces over OTLP")
	fs.Float64("observability.trace_sample_ratio", 1.0, "Trace sampling ratio (0..1)")
	fs.String("observability.logging.level", "", "Log level: debug, info, warn, error")
	fs.String("observability.logging.format", "", "Log format: json or text")
	fs.Bool("observability.logging.exports_enabled", false, "Export logs over OTLP")
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint for traces and logs")
	fs.String("observability.otlp.protocol", "", "OTLP protocol: grpc or http/protobuf")
	fs.Bool("observability.otlp.insecure", false, "Disable TLS for OTLP exporters")

	fs.StringP("config", "c", "", "Config file path")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("schema.path", "schema.yaml")
	v.SetDefault("schema.output_mode", "relay")
	v.SetDefault("schema.watch", false)
	v.SetDefault("schema.debounce", 250*time.Millisecond)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.dsn_file", "")
	v.SetDefault("storage.connection_timeout", 30*time.Second)
	v.SetDefault("storage.pool.max_open", 25)
	v.SetDefault("storage.pool.max_idle", 5)
	v.SetDefault("storage.pool.max_lifetime", 5*time.Minute)

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_secret_file", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "model-graphql")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.graphiql_enabled", false)
	v.SetDefault("server.admin.schema_reload_enabled", false)
	v.SetDefault("server.admin.auth_token", "")
	v.SetDefault("server.admin.auth_token_file", "")
	v.SetDefault("server.rate_limit_enabled", false)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("server.cors_expose_headers", []string{})
	v.SetDefault("server.cors_allow_credentials", false)
	v.SetDefault("server.cors_max_age", 86400)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)

	v.SetDefault("observability.service_name", "model-graphql")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.sql_tracing_enabled", true)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

var stdin io.Reader = os.Stdin

// readSecretFile reads a trimmed secret from path, or from stdin when path is "@-".
func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if strings.TrimSpace(path) == "@-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"storage.dsn_file",
		"auth.token_secret_file",
		"server.admin.auth_token_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
