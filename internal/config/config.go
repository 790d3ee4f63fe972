// Package config holds the library's connection and transfer defaults:
// endpoint/region/credentials, default chunk size, and retry policy.
// Grounded on the teacher's internal/config/apiconfig.go for the
// "typed struct + fail-fast Validate()" shape and internal/config/paths.go
// for resolving well-known directories, adapted from Rescale's
// platform-specific INI file to environment-variable driven defaults
// suited to a library (no GUI/CLI config file format to anchor to).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/s3tool/s3tool/internal/s3err"
)

// DefaultChunkSize is 5 MiB, per spec.md §6.
const DefaultChunkSize = 5 * 1024 * 1024

// DefaultHTTPPoolSize bounds concurrent SDK calls.
const DefaultHTTPPoolSize = 10

// DefaultInternalPoolSize bounds concurrent part encryption/decryption.
const DefaultInternalPoolSize = 50

// Config holds construction-time settings for a Client. Values are
// captured at New() and never mutated afterward (Design Note 5: no
// post-construction mutation of retry count or endpoint).
type Config struct {
	// Region is the S3 region; required.
	Region string
	// Endpoint overrides the default AWS endpoint resolution, for
	// S3-compatible (non-AWS) backends.
	Endpoint string
	// AccessKeyID/SecretAccessKey/SessionToken are static credentials.
	// If empty, the SDK's default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// ChunkSize is the default plaintext part size for new uploads.
	ChunkSize int64

	// HTTPPoolSize bounds concurrent SDK HTTP calls.
	HTTPPoolSize int
	// InternalPoolSize bounds concurrent CPU-bound part encryption and
	// decryption. Retry backoff waits are timers and do not hold a slot.
	InternalPoolSize int

	// MaxRetries is the default retry cap for all operations.
	MaxRetries int
	// RetryClientException opts client-side (4xx) errors into retry.
	RetryClientException bool
	RetryInitialDelay    time.Duration
	RetryMaxDelay        time.Duration

	// KeyDir is the key provider's directory; empty resolves to
	// ~/.s3lib-keys (keystore.DefaultDir).
	KeyDir string
}

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.HTTPPoolSize <= 0 {
		c.HTTPPoolSize = DefaultHTTPPoolSize
	}
	if c.InternalPoolSize <= 0 {
		c.InternalPoolSize = DefaultInternalPoolSize
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 15 * time.Second
	}
	return c
}

// Validate fails fast on missing required fields and invalid values,
// per Design Note 2 (validated configuration records, not builders).
func (c Config) Validate() error {
	if c.Region == "" {
		return s3err.New(s3err.Usage, "validate config", fmt.Errorf("region is required"))
	}
	if c.ChunkSize < 0 {
		return s3err.New(s3err.Usage, "validate config", fmt.Errorf("chunk size must be non-negative"))
	}
	if c.ChunkSize > 0 && c.ChunkSize%16 != 0 {
		return s3err.New(s3err.Usage, "validate config", fmt.Errorf("chunk size must be a multiple of 16 bytes, got %d", c.ChunkSize))
	}
	if c.MaxRetries < 0 {
		return s3err.New(s3err.Usage, "validate config", fmt.Errorf("max retries must be non-negative"))
	}
	return nil
}

// FromEnv builds a Config from S3TOOL_-prefixed environment variables,
// grounded on the teacher's pattern of layering environment overrides
// on top of struct defaults (internal/config/apiconfig.go's env-var
// fallback for api_key).
func FromEnv() Config {
	return Config{
		Region:          os.Getenv("S3TOOL_REGION"),
		Endpoint:        os.Getenv("S3TOOL_ENDPOINT"),
		AccessKeyID:     os.Getenv("S3TOOL_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3TOOL_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("S3TOOL_SESSION_TOKEN"),
		KeyDir:          os.Getenv("S3TOOL_KEY_DIR"),
	}
}
