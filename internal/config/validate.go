package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
)

// minTokenSecretBytes matches the HS256 key floor enforced by the token issuer.
const minTokenSecretBytes = 16

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Schema.validate(result)
	c.Storage.validate(result)
	c.Auth.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)

	return result
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(s.Path) == "" {
		result.addError("schema.path", "schema path is required", "point it at a YAML or JSON entity description")
	}
	switch strings.ToLower(s.OutputMode) {
	case "", "relay", "simple":
	default:
		result.addError("schema.output_mode", fmt.Sprintf("invalid output mode %q", s.OutputMode), "valid values are: relay, simple")
	}
	if s.Debounce < 0 {
		result.addError("schema.debounce", "debounce cannot be negative", "")
	}
	if s.Watch && s.Debounce == 0 {
		result.addWarning("schema.debounce", "watch is enabled without debounce", "editors often emit several writes per save")
	}
}

func (s *StorageConfig) validate(result *ValidationResult) {
	switch s.Driver {
	case "memory":
		if s.DSN != "" {
			result.addWarning("storage.dsn", "dsn is set but the memory driver ignores it", "set storage.driver to mysql")
		}
	case "mysql":
		if strings.TrimSpace(s.DSN) == "" {
			result.addError("storage.dsn", "dsn is required for the mysql driver", "set storage.dsn or storage.dsn_file")
		} else if _, err := mysql.ParseDSN(s.DSN); err != nil {
			result.addError("storage.dsn", "dsn cannot be parsed", "use the user:pass@tcp(host:port)/db form")
		}
	default:
		result.addError("storage.driver", fmt.Sprintf("unsupported storage driver %q", s.Driver), "valid values are: memory, mysql")
	}

	if s.Pool.MaxOpen < 0 {
		result.addError("storage.pool.max_open", "max_open cannot be negative", "")
	}
	if s.Pool.MaxIdle < 0 {
		result.addError("storage.pool.max_idle", "max_idle cannot be negative", "")
	}
	if s.Pool.MaxOpen > 0 && s.Pool.MaxIdle > s.Pool.MaxOpen {
		result.addWarning("storage.pool.max_idle", "max_idle exceeds max_open", "database/sql caps idle connections at max_open")
	}
	if s.ConnectionTimeout < 0 {
		result.addError("storage.connection_timeout", "connection_timeout cannot be negative", "")
	}
}

func (a *AuthConfig) validate(result *ValidationResult) {
	if len(a.TokenSecret) < minTokenSecretBytes {
		result.addError("auth.token_secret",
			fmt.Sprintf("token secret must be at least %d bytes", minTokenSecretBytes),
			"set MGQL_AUTH_TOKEN_SECRET or auth.token_secret_file")
	}
	if a.TokenTTL <= 0 {
		result.addError("auth.token_ttl", "token_ttl must be positive", "")
	}
	if a.BcryptCost != 0 && (a.BcryptCost < bcrypt.MinCost || a.BcryptCost > bcrypt.MaxCost) {
		result.addError("auth.bcrypt_cost",
			fmt.Sprintf("bcrypt cost %d is out of range (%d-%d)", a.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost), "")
	}
	if a.BcryptCost != 0 && a.BcryptCost < bcrypt.DefaultCost {
		result.addWarning("auth.bcrypt_cost", "bcrypt cost is below the library default", "use at least 10 outside tests")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}

	if s.Admin.SchemaReloadEnabled && s.Admin.AuthToken == "" {
		result.addError("server.admin.auth_token", "admin auth token is required when schema reload is enabled",
			"set server.admin.auth_token_file")
	}
	if !s.Admin.SchemaReloadEnabled && s.Admin.AuthToken != "" {
		result.addWarning("server.admin.schema_reload_enabled", "admin auth token is set but schema reload is disabled", "")
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.addError("server.rate_limit_rps", "rate_limit_rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			result.addError("server.rate_limit_burst", "rate_limit_burst must be greater than 0 when rate limiting is enabled", "")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.addWarning("server.rate_limit_enabled", "rate limit values are set but rate limiting is disabled",
			"enable server.rate_limit_enabled to apply rate limits")
	}

	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.addError("server.cors_allowed_origins", "at least one origin is required when CORS is enabled", `use "*" to allow any origin`)
		}
		for _, origin := range s.CORSAllowedOrigins {
			if origin == "*" && s.CORSAllowCredentials {
				result.addError("server.cors_allow_credentials", "credentials cannot be allowed with a wildcard origin", "list explicit origins")
			}
		}
	}
	if s.CORSMaxAge < 0 {
		result.addError("server.cors_max_age", "cors_max_age cannot be negative", "")
	}

	for field, d := range map[string]int64{
		"server.read_timeout":         int64(s.ReadTimeout),
		"server.write_timeout":        int64(s.WriteTimeout),
		"server.idle_timeout":         int64(s.IdleTimeout),
		"server.shutdown_timeout":     int64(s.ShutdownTimeout),
		"server.health_check_timeout": int64(s.HealthCheckTimeout),
	} {
		if d < 0 {
			result.addError(field, "timeout cannot be negative", "")
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio", "trace_sample_ratio must be between 0 and 1", "")
	}

	if o.TracingEnabled || o.Logging.ExportsEnabled {
		o.OTLP.validate("observability.otlp", result)
		if o.Traces != nil {
			o.Traces.validate("observability.traces", result)
		}
		if o.Logs != nil {
			o.Logs.validate("observability.logs", result)
		}
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
