// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON config file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// LogLevel is passed to the logger ("debug", "info", ...).
	LogLevel string `json:"log_level"`

	// TLSCert, TLSKey and TLSCA locate the server keypair and the CA used to
	// verify owner client certificates. An empty TLSCert serves plain HTTP.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
	TLSCA   string `json:"tls_ca"`
	// TLSCAKey is the private key of TLSCA. When set together with TLSCA
	// the server issues owner certificates on registration.
	TLSCAKey string `json:"tls_ca_key"`

	// TrustProxy makes the server take the client address from
	// X-Forwarded-For / X-Real-IP. Enable it only behind a reverse proxy
	// that overwrites those headers.
	TrustProxy bool `json:"trust_proxy"`

	// AllowedOrigin is the single browser origin allowed by CORS.
	AllowedOrigin string `json:"allowed_origin"`

	// GeminiAPIKey enables the letter generator. Empty disables it.
	GeminiAPIKey string `json:"gemini_api_key"`
	// GeminiModel is the upstream model name.
	GeminiModel string `json:"gemini_model"`
	// GeminiRPS caps outbound generation calls per second.
	GeminiRPS int `json:"gemini_rps"`

	// S3Bucket, S3Region, S3Endpoint and S3PublicURL configure the
	// attachment store. S3Endpoint points at LocalStack or another
	// S3-compatible service when set.
	S3Bucket    string `json:"s3_bucket"`
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3PublicURL string `json:"s3_public_url"`

	// UploadTimeout bounds each background attachment upload.
	UploadTimeout Duration `json:"upload_timeout"`

	// RateLimit requests per RateWindow are allowed per client address on
	// the letter endpoints.
	RateLimit  int      `json:"rate_limit"`
	RateWindow Duration `json:"rate_window"`

	// CleanInterval and Retention drive purging of soft-deleted capsules.
	CleanInterval Duration `json:"clean_interval"`
	Retention     Duration `json:"retention"`
}

// Duration is a time.Duration that unmarshals from JSON strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts either a Go duration string or integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

// Parse parses os.Args and the environment. It terminates the process on
// an unreadable config file, mirroring flag.ExitOnError.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs builds Options from args, the config file they (or CONFIG)
// point at, and getenv overrides.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	options := &Options{}
	var (
		uploadTimeout, rateWindow, cleanInterval, retention time.Duration
	)

	fs := flag.NewFlagSet("chronos", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&options.Config, "config", "config.json", "path to config file")
	fs.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&options.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&options.TLSCert, "tls-cert", "", "server certificate")
	fs.StringVar(&options.TLSKey, "tls-key", "", "server private key")
	fs.StringVar(&options.TLSCA, "tls-ca", "", "CA for owner client certificates")
	fs.StringVar(&options.TLSCAKey, "tls-ca-key", "", "CA private key for issuing owner certificates")
	fs.BoolVar(&options.TrustProxy, "trust-proxy", false, "trust X-Forwarded-For from a reverse proxy")
	fs.StringVar(&options.AllowedOrigin, "origin", "http://localhost:3000", "allowed CORS origin")
	fs.StringVar(&options.GeminiModel, "gemini-model", "gemini-2.5-flash", "letter generation model")
	fs.IntVar(&options.GeminiRPS, "gemini-rps", 5, "max outbound generation calls per second")
	fs.StringVar(&options.S3Bucket, "bucket", "capsule-bucket", "attachment bucket")
	fs.StringVar(&options.S3Region, "region", "us-east-1", "attachment bucket region")
	fs.StringVar(&options.S3Endpoint, "s3-endpoint", "", "custom S3 endpoint (LocalStack)")
	fs.StringVar(&options.S3PublicURL, "s3-public-url", "", "public base URL of stored attachments")
	fs.DurationVar(&uploadTimeout, "upload-timeout", 30*time.Second, "per-attachment upload timeout")
	fs.IntVar(&options.RateLimit, "rate-limit", 10, "letter requests per window per client")
	fs.DurationVar(&rateWindow, "rate-window", time.Minute, "letter rate limit window")
	fs.DurationVar(&cleanInterval, "clean-interval", time.Hour, "soft-delete purge interval")
	fs.DurationVar(&retention, "retention", 30*24*time.Hour, "soft-deleted capsule retention")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	options.UploadTimeout = Duration{uploadTimeout}
	options.RateWindow = Duration{rateWindow}
	options.CleanInterval = Duration{cleanInterval}
	options.Retention = Duration{retention}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	env := map[string]*string{
		"SERVER_ADDRESS": &options.Port,
		"DATABASE_DSN":   &options.DatabaseDSN,
		"LOG_LEVEL":      &options.LogLevel,
		"GEMINI_API_KEY": &options.GeminiAPIKey,
		"ALLOWED_ORIGIN": &options.AllowedOrigin,
		"S3_BUCKET":      &options.S3Bucket,
		"S3_REGION":      &options.S3Region,
		"S3_ENDPOINT":    &options.S3Endpoint,
		"S3_PUBLIC_URL":  &options.S3PublicURL,
	}
	for key, dst := range env {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if v := getenv("TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUST_PROXY %q: %w", v, err)
		}
		options.TrustProxy = trust
	}

	return options, nil
}
