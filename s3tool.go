// Package s3tool implements a chunked, parallel, optionally-encrypted
// multipart transfer client for S3-compatible object storage.
//
// A Client is constructed once from a validated Config and reused
// across transfers; it owns the SDK connection, the key provider, and
// the two concurrency pools every transfer shares.
package s3tool

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/s3tool/s3tool/internal/config"
	"github.com/s3tool/s3tool/internal/envelope"
	"github.com/s3tool/s3tool/internal/keystore"
	"github.com/s3tool/s3tool/internal/logx"
	"github.com/s3tool/s3tool/internal/metadata"
	"github.com/s3tool/s3tool/internal/progress"
	"github.com/s3tool/s3tool/internal/retry"
	"github.com/s3tool/s3tool/internal/s3err"
	"github.com/s3tool/s3tool/internal/sdkadapter"
	"github.com/s3tool/s3tool/internal/transfer"
	"github.com/s3tool/s3tool/internal/walk"
)

// Config is re-exported so callers never import an internal package.
type Config = config.Config

// Client is the library's entry point.
type Client struct {
	cfg   config.Config
	api   sdkadapter.API
	keys  *keystore.Provider
	pools *transfer.Pools
	orch  *transfer.Orchestrator
	log   *logx.Logger
}

// Option customizes Client construction.
type Option func(*clientOptions)

type clientOptions struct {
	listener progress.Listener
	log      *logx.Logger
	api      sdkadapter.API // test-only escape hatch
}

// WithListener registers a progress.Listener that receives every part
// and phase event across every transfer this Client runs.
func WithListener(l progress.Listener) Option {
	return func(o *clientOptions) { o.listener = l }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *logx.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// withAPI substitutes the SDK adapter, for tests exercising the
// facade against a fake backend without a network dependency.
func withAPI(api sdkadapter.API) Option {
	return func(o *clientOptions) { o.api = api }
}

// New validates cfg, applies defaults, and constructs a Client. All
// retry/endpoint/pool settings are fixed at construction time (Design
// Note 5); there is no setter to mutate them afterward.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.listener == nil {
		o.listener = progress.Noop
	}
	if o.log == nil {
		o.log = logx.Default()
	}

	api := o.api
	if api == nil {
		real, err := sdkadapter.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		api = real
	}

	keys, err := keystore.New(cfg.KeyDir)
	if err != nil {
		return nil, err
	}

	pools := transfer.NewPools(cfg.HTTPPoolSize, cfg.InternalPoolSize)
	retryCfg := retry.Config{
		MaxRetries:            cfg.MaxRetries,
		RetryClientException:  cfg.RetryClientException,
		InitialDelay:          cfg.RetryInitialDelay,
		MaxDelay:              cfg.RetryMaxDelay,
		OnRetry: func(attempt int, err error) {
			o.log.Warn().Int("attempt", attempt).Err(err).Msg("retrying s3 operation")
		},
	}

	orch := transfer.New(api, keys, pools, o.listener, retryCfg, o.log)

	return &Client{cfg: cfg, api: api, keys: keys, pools: pools, orch: orch, log: o.log}, nil
}

// Shutdown returns nil without doing any work: it does not wait for or
// cancel in-flight transfers, and it does not close the SDK client.
func (c *Client) Shutdown() error { return nil }

// ---- URI parsing ----

// ParseURI parses an "s3://bucket/key" URI, optionally with a
// "?versionId=..." query component, per spec.md §6.
func ParseURI(uri string) (bucket, key, versionID string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", "", s3err.New(s3err.Usage, "parse uri", fmt.Errorf("uri %q must start with %q", uri, scheme))
	}
	rest := uri[len(scheme):]

	if idx := strings.Index(rest, "?"); idx >= 0 {
		query := rest[idx+1:]
		rest = rest[:idx]
		for _, pair := range strings.Split(query, "&") {
			k, v, ok := strings.Cut(pair, "=")
			if ok && k == "versionId" {
				versionID = v
			}
		}
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", "", s3err.New(s3err.Usage, "parse uri", fmt.Errorf("uri %q must have the form s3://bucket/key", uri))
	}
	return bucket, key, versionID, nil
}

// cannedACLs is the supported canned ACL set, per spec.md §6.
var cannedACLs = map[string]bool{
	"":                          true,
	"private":                   true,
	"public-read":               true,
	"public-read-write":         true,
	"authenticated-read":        true,
	"bucket-owner-read":         true,
	"bucket-owner-full-control": true,
}

func validateACL(acl string) error {
	if !cannedACLs[acl] {
		return s3err.New(s3err.Usage, "validate acl", fmt.Errorf("unsupported canned ACL %q", acl))
	}
	return nil
}

// ---- Upload ----

// Upload reads the local file at opts.LocalPath and writes it to
// opts.Bucket/opts.Key, chunked and optionally encrypted per opts.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (*transfer.UploadResult, error) {
	if err := validateACL(opts.ACL); err != nil {
		return nil, err
	}

	f, err := os.Open(opts.LocalPath)
	if err != nil {
		return nil, s3err.New(s3err.Usage, "open local file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, s3err.New(s3err.Usage, "stat local file", err)
	}

	return c.orch.Upload(ctx, transfer.UploadInput{
		Bucket:        opts.Bucket,
		Key:           opts.Key,
		Source:        f,
		SourceSize:    info.Size(),
		ChunkSize:     opts.chunkSizeOrDefault(c.cfg.ChunkSize),
		KeyName:       opts.KeyName,
		ACL:           opts.ACL,
		ExtraMetadata: opts.ExtraMetadata,
		RetryOverride: opts.retryOverride,
	})
}

// UploadDir uploads every regular file under root, keyed by
// prefix+relative-path with forward slashes, per §4.4's expansion.
// It returns a result per discovered file, in discovery order; the
// first error encountered is also returned without aborting the rest
// of the batch, so callers can report partial success.
func (c *Client) UploadDir(ctx context.Context, bucket, prefix, root string, base UploadOptions) ([]*transfer.UploadResult, error) {
	files, err := walk.Files(root)
	if err != nil {
		return nil, err
	}

	results := make([]*transfer.UploadResult, len(files))
	var firstErr error
	for i, f := range files {
		opts := base
		opts.Bucket = bucket
		opts.Key = f.RelPath
		if p := strings.TrimSuffix(prefix, "/"); p != "" {
			opts.Key = p + "/" + f.RelPath
		}
		opts.LocalPath = f.AbsPath

		res, uerr := c.Upload(ctx, opts)
		if uerr != nil {
			if firstErr == nil {
				firstErr = uerr
			}
			continue
		}
		results[i] = res
	}
	return results, firstErr
}

// ---- Download ----

// Download fetches opts.Bucket/opts.Key into opts.LocalPath, decrypting
// and reassembling parts as needed.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*transfer.DownloadResult, error) {
	f, err := os.OpenFile(opts.LocalPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, s3err.New(s3err.Usage, "open local file", err)
	}
	defer f.Close()

	return c.orch.Download(ctx, transfer.DownloadInput{
		Bucket: opts.Bucket,
		Key:    opts.Key,
		Dest:   f,
	})
}

// DownloadDir lists every object under bucket/prefix and downloads
// each into root, mirroring the key's path below prefix.
func (c *Client) DownloadDir(ctx context.Context, bucket, prefix, root string, base DownloadOptions) ([]*transfer.DownloadResult, error) {
	objects, err := c.List(ctx, bucket, prefix, "")
	if err != nil {
		return nil, err
	}

	results := make([]*transfer.DownloadResult, 0, len(objects))
	var firstErr error
	for _, obj := range objects {
		opts := base
		opts.Bucket = bucket
		opts.Key = obj.Key
		rel := strings.TrimPrefix(obj.Key, prefix)
		opts.LocalPath = strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(rel, "/")

		if err := os.MkdirAll(parentDir(opts.LocalPath), 0o755); err != nil {
			if firstErr == nil {
				firstErr = s3err.New(s3err.Usage, "create local directory", err)
			}
			continue
		}

		res, derr := c.Download(ctx, opts)
		if derr != nil {
			if firstErr == nil {
				firstErr = derr
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// ---- Copy ----

// Copy performs a server-side copy of one object to another key,
// carrying over the encryption envelope unchanged.
func (c *Client) Copy(ctx context.Context, opts CopyOptions) (*transfer.CopyResult, error) {
	if err := validateACL(opts.ACL); err != nil {
		return nil, err
	}
	return c.orch.Copy(ctx, transfer.CopyInput{
		SourceBucket: opts.SourceBucket,
		SourceKey:    opts.SourceKey,
		DestBucket:   opts.DestBucket,
		DestKey:      opts.DestKey,
		ACL:          opts.ACL,
	})
}

// ---- List / Delete / Exists ----

// ObjectSummary is one entry returned by List.
type ObjectSummary struct {
	Key  string
	Size int64
	ETag string
}

// List returns every object under bucket/prefix, paginating internally.
func (c *Client) List(ctx context.Context, bucket, prefix, delimiter string) ([]ObjectSummary, error) {
	var out []ObjectSummary
	token := ""
	for {
		page, err := retry.Do(ctx, c.retryConfig(), retry.Thunk[*sdkadapter.ListPage]{
			Description: fmt.Sprintf("list objects in %s/%s", bucket, prefix),
			Run: func(ctx context.Context) (*sdkadapter.ListPage, error) {
				return c.api.ListObjects(ctx, bucket, prefix, delimiter, token)
			},
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			out = append(out, ObjectSummary{Key: obj.Key, Size: obj.Size, ETag: obj.ETag})
		}
		if !page.IsTruncated || page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	return out, nil
}

// Delete removes one object.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := retry.Do(ctx, c.retryConfig(), retry.Thunk[struct{}]{
		Description: fmt.Sprintf("delete %s/%s", bucket, key),
		Run: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.Delete(ctx, bucket, key)
		},
	})
	return err
}

// Exists reports whether bucket/key is present.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	return retry.Do(ctx, c.retryConfig(), retry.Thunk[bool]{
		Description: fmt.Sprintf("check existence of %s/%s", bucket, key),
		Run: func(ctx context.Context) (bool, error) {
			return c.api.Exists(ctx, bucket, key)
		},
	})
}

// ---- Pending uploads ----

// PendingUpload is one in-progress multipart upload.
type PendingUpload struct {
	Key      string
	UploadID string
	Started  string
}

// ListPendingUploads lists incomplete multipart uploads in bucket, so
// callers can clean up storage billed for abandoned parts.
func (c *Client) ListPendingUploads(ctx context.Context, bucket string) ([]PendingUpload, error) {
	uploads, err := retry.Do(ctx, c.retryConfig(), retry.Thunk[[]sdkadapter.PendingUpload]{
		Description: fmt.Sprintf("list pending uploads in %s", bucket),
		Run: func(ctx context.Context) ([]sdkadapter.PendingUpload, error) {
			return c.api.ListMultipart(ctx, bucket)
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]PendingUpload, len(uploads))
	for i, u := range uploads {
		out[i] = PendingUpload{Key: u.Key, UploadID: u.UploadID, Started: u.Started}
	}
	return out, nil
}

// AbortPendingUpload aborts one incomplete multipart upload.
func (c *Client) AbortPendingUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := retry.Do(ctx, c.retryConfig(), retry.Thunk[struct{}]{
		Description: fmt.Sprintf("abort pending upload %s for %s/%s", uploadID, bucket, key),
		Run: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.AbortMultipart(ctx, bucket, key, uploadID)
		},
	})
	return err
}

func (c *Client) retryConfig() retry.Config {
	return retry.Config{
		MaxRetries:           c.cfg.MaxRetries,
		RetryClientException: c.cfg.RetryClientException,
		InitialDelay:         c.cfg.RetryInitialDelay,
		MaxDelay:             c.cfg.RetryMaxDelay,
	}
}

// ---- Key management ----

// AddEncryptedKey wraps an already-encrypted object's symmetric key
// under an additional RSA key pair, so it can be unwrapped by a second
// recipient without re-uploading the object. The new wrapping is
// unwrapped from an existing one using a key pair this Client already
// holds the private half of.
func (c *Client) AddEncryptedKey(ctx context.Context, bucket, key, newKeyName string) error {
	meta, symmetricKey, err := c.headAndUnwrap(ctx, bucket, key)
	if err != nil {
		return err
	}

	newKP, err := c.keys.Get(newKeyName)
	if err != nil {
		return err
	}
	wrappings, err := envelope.AddWrapping(meta.Wrappings, newKeyName, newKP.Public, symmetricKey)
	if err != nil {
		return err
	}
	meta.Wrappings = wrappings
	return c.putMetadata(ctx, bucket, key, meta)
}

// RemoveEncryptedKey removes one key pair's wrapping from an
// encrypted object's metadata, refusing to remove the last remaining
// wrapping.
func (c *Client) RemoveEncryptedKey(ctx context.Context, bucket, key, keyName string) error {
	meta, _, err := c.headAndUnwrap(ctx, bucket, key)
	if err != nil {
		return err
	}

	wrappings, err := envelope.RemoveWrapping(meta.Wrappings, keyName)
	if err != nil {
		return err
	}
	meta.Wrappings = wrappings
	return c.putMetadata(ctx, bucket, key, meta)
}

// headAndUnwrap fetches an object's metadata and recovers its
// symmetric key using any key pair this Client can unwrap with.
func (c *Client) headAndUnwrap(ctx context.Context, bucket, key string) (metadata.Metadata, []byte, error) {
	info, err := retry.Do(ctx, c.retryConfig(), retry.Thunk[*sdkadapter.ObjectInfo]{
		Description: fmt.Sprintf("head object %s/%s", bucket, key),
		Run: func(ctx context.Context) (*sdkadapter.ObjectInfo, error) {
			return c.api.HeadObject(ctx, bucket, key)
		},
	})
	if err != nil {
		return metadata.Metadata{}, nil, err
	}

	meta, wroteByUs, err := metadata.Decode(info.Metadata)
	if err != nil {
		return metadata.Metadata{}, nil, err
	}
	if !wroteByUs || !meta.Encrypted() {
		return metadata.Metadata{}, nil, s3err.New(s3err.Usage, "edit key wrappings", fmt.Errorf("%s/%s is not an encrypted object managed by this library", bucket, key))
	}

	symmetricKey, err := c.unwrapAny(meta.Wrappings)
	if err != nil {
		return metadata.Metadata{}, nil, err
	}
	return meta, symmetricKey, nil
}

func (c *Client) unwrapAny(wrappings []envelope.Wrapping) ([]byte, error) {
	var lastErr error
	for _, w := range wrappings {
		kp, err := c.keys.Get(w.KeyName)
		if err != nil {
			lastErr = err
			continue
		}
		if kp.Private == nil {
			continue
		}
		symmetricKey, err := envelope.Unwrap(kp.Private, w.Wrapped)
		if err != nil {
			lastErr = err
			continue
		}
		return symmetricKey, nil
	}
	if lastErr == nil {
		lastErr = s3err.New(s3err.MissingKey, "unwrap symmetric key", fmt.Errorf("no usable key wrapping found"))
	}
	return nil, lastErr
}

func (c *Client) putMetadata(ctx context.Context, bucket, key string, meta metadata.Metadata) error {
	_, err := retry.Do(ctx, c.retryConfig(), retry.Thunk[struct{}]{
		Description: fmt.Sprintf("update metadata for %s/%s", bucket, key),
		Run: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.UpdateMetadata(ctx, bucket, key, metadata.Encode(meta))
		},
	})
	return err
}
