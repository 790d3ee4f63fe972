package s3tool

import (
	"fmt"

	"github.com/s3tool/s3tool/internal/retry"
	"github.com/s3tool/s3tool/internal/s3err"
)

// UploadOptions configures one Upload call. Construct with
// NewUploadOptions, then apply functional options.
type UploadOptions struct {
	Bucket        string
	Key           string
	LocalPath     string
	ACL           string
	KeyName       string
	ExtraMetadata map[string]string

	chunkSize    int64
	retryOverride *retry.Config
}

// NewUploadOptions validates the required fields (bucket, key, local
// path) and returns a Usage error immediately if any are missing,
// per Design Note 2's fail-fast builder style.
func NewUploadOptions(bucket, key, localPath string, opts ...UploadOption) (UploadOptions, error) {
	if bucket == "" || key == "" || localPath == "" {
		return UploadOptions{}, s3err.New(s3err.Usage, "new upload options", fmt.Errorf("bucket, key, and local path are all required"))
	}
	u := UploadOptions{Bucket: bucket, Key: key, LocalPath: localPath}
	for _, opt := range opts {
		opt(&u)
	}
	return u, nil
}

func (u UploadOptions) chunkSizeOrDefault(fallback int64) int64 {
	if u.chunkSize > 0 {
		return u.chunkSize
	}
	return fallback
}

// UploadOption customizes UploadOptions.
type UploadOption func(*UploadOptions)

// WithACL sets a canned ACL on the uploaded object.
func WithACL(acl string) UploadOption { return func(u *UploadOptions) { u.ACL = acl } }

// WithChunkSize overrides the Client's default chunk size for this
// upload. Must be a multiple of 16 bytes when encrypting.
func WithChunkSize(size int64) UploadOption { return func(u *UploadOptions) { u.chunkSize = size } }

// WithKeyName encrypts the upload under the named key pair.
func WithKeyName(name string) UploadOption { return func(u *UploadOptions) { u.KeyName = name } }

// WithExtraMetadata attaches caller-supplied metadata fields alongside
// this library's own s3tool-* fields.
func WithExtraMetadata(m map[string]string) UploadOption {
	return func(u *UploadOptions) { u.ExtraMetadata = m }
}

// WithRetry overrides the Client's default retry policy for this call.
func WithRetry(cfg retry.Config) UploadOption {
	return func(u *UploadOptions) { u.retryOverride = &cfg }
}

// DownloadOptions configures one Download call.
type DownloadOptions struct {
	Bucket    string
	Key       string
	LocalPath string
}

// NewDownloadOptions validates the required fields.
func NewDownloadOptions(bucket, key, localPath string, opts ...DownloadOption) (DownloadOptions, error) {
	if bucket == "" || key == "" || localPath == "" {
		return DownloadOptions{}, s3err.New(s3err.Usage, "new download options", fmt.Errorf("bucket, key, and local path are all required"))
	}
	d := DownloadOptions{Bucket: bucket, Key: key, LocalPath: localPath}
	for _, opt := range opts {
		opt(&d)
	}
	return d, nil
}

// DownloadOption customizes DownloadOptions. Reserved for future
// per-call overrides (e.g. a version ID); none exist yet.
type DownloadOption func(*DownloadOptions)

// CopyOptions configures one Copy call.
type CopyOptions struct {
	SourceBucket string
	SourceKey    string
	DestBucket   string
	DestKey      string
	ACL          string
}

// NewCopyOptions validates the required fields.
func NewCopyOptions(sourceBucket, sourceKey, destBucket, destKey string, opts ...CopyOption) (CopyOptions, error) {
	if sourceBucket == "" || sourceKey == "" || destBucket == "" || destKey == "" {
		return CopyOptions{}, s3err.New(s3err.Usage, "new copy options", fmt.Errorf("source bucket/key and dest bucket/key are all required"))
	}
	c := CopyOptions{SourceBucket: sourceBucket, SourceKey: sourceKey, DestBucket: destBucket, DestKey: destKey}
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}

// CopyOption customizes CopyOptions.
type CopyOption func(*CopyOptions)

// WithCopyACL sets a canned ACL on the copy's destination object.
func WithCopyACL(acl string) CopyOption { return func(c *CopyOptions) { c.ACL = acl } }
