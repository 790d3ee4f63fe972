// Package sdkadapter isolates every call into the external S3 SDK
// behind a narrow interface, so the orchestrator and part workers stay
// portable between S3-compatible back-ends. This is the only package
// that imports github.com/aws/aws-sdk-go-v2/service/s3 types into its
// public surface.
//
// Grounded on the teacher's internal/cloud/providers/s3/client.go,
// which wraps *s3.Client behind an S3Client type exposing the handful
// of operations the rest of the codebase needs (HeadObject, GetObject,
// GetObjectRange, ...) rather than leaking the raw SDK client.
package sdkadapter

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	s3cfg "github.com/s3tool/s3tool/internal/config"
	"github.com/s3tool/s3tool/internal/s3err"
)

// ObjectInfo is the subset of HeadObject/GetObject results the core needs.
type ObjectInfo struct {
	ContentLength int64
	ETag          string
	Metadata      map[string]string
}

// ListedObject is one entry from a List call.
type ListedObject struct {
	Key          string
	Size         int64
	ETag         string
	LastModified string
}

// ListPage is one page of a List call.
type ListPage struct {
	Objects        []ListedObject
	CommonPrefixes []string
	NextToken      string
	IsTruncated    bool
}

// PendingUpload is one in-progress multipart upload, as returned by ListMultipart.
type PendingUpload struct {
	Key      string
	UploadID string
	Started  string
}

// CompletedPart is one finished part, as required by CompleteMultipart.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// API is the capability set the core requires of an S3-compatible
// backend (spec.md §4.7).
type API interface {
	HeadObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	GetObjectRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error)
	ListObjects(ctx context.Context, bucket, prefix, delimiter, continuationToken string) (*ListPage, error)
	ListBuckets(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// UpdateMetadata replaces an existing object's user metadata via a
	// same-bucket self-copy (MetadataDirective REPLACE), without
	// re-uploading the body.
	UpdateMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error

	InitiateMultipart(ctx context.Context, bucket, key string, metadata map[string]string, acl string) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body io.Reader, length int64) (etag string, err error)
	CopyPart(ctx context.Context, destBucket, destKey, uploadID string, partNumber int32, sourceBucket, sourceKey string, start, end *int64) (etag string, err error)
	CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (etag string, err error)
	AbortMultipart(ctx context.Context, bucket, key, uploadID string) error
	ListMultipart(ctx context.Context, bucket string) ([]PendingUpload, error)

	GetObjectACL(ctx context.Context, bucket, key string) (string, error)
	SetObjectACL(ctx context.Context, bucket, key, acl string) error
}

// Client adapts *s3.Client to API.
type Client struct {
	s3 *s3.Client
}

var _ API = (*Client)(nil)

// New constructs a Client from a library Config, grounded on the
// teacher's NewS3Client (internal/cloud/providers/s3/client.go):
// config.LoadDefaultConfig with an explicit region and, when static
// credentials are supplied, a StaticCredentialsProvider.
func New(ctx context.Context, cfg s3cfg.Config) (*Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, s3err.New(s3err.Usage, "load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Client{s3: client}, nil
}

func (c *Client) HeadObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, classify(err)
	}
	return &ObjectInfo{
		ContentLength: aws.ToInt64(out.ContentLength),
		ETag:          aws.ToString(out.ETag),
		Metadata:      out.Metadata,
	}, nil
}

func (c *Client) GetObjectRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	rangeHeader := httpRange(start, end)
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, classify(err)
	}
	return out.Body, nil
}

func (c *Client) ListObjects(ctx context.Context, bucket, prefix, delimiter, continuationToken string) (*ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	out, err := c.s3.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, classify(err)
	}

	page := &ListPage{IsTruncated: aws.ToBool(out.IsTruncated)}
	if out.NextContinuationToken != nil {
		page.NextToken = *out.NextContinuationToken
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, ListedObject{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
			ETag: aws.ToString(obj.ETag),
		})
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return page, nil
}

func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classify(err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}
	return false, classify(err)
}

func (c *Client) UpdateMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	_, err := c.s3.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(bucket + "/" + key),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) InitiateMultipart(ctx context.Context, bucket, key string, metadata map[string]string, acl string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Metadata: metadata,
	}
	if acl != "" {
		input.ACL = types.ObjectCannedACL(acl)
	}
	out, err := c.s3.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.UploadId), nil
}

func (c *Client) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body io.Reader, length int64) (string, error) {
	out, err := c.s3.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(length),
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.ETag), nil
}

func (c *Client) CopyPart(ctx context.Context, destBucket, destKey, uploadID string, partNumber int32, sourceBucket, sourceKey string, start, end *int64) (string, error) {
	input := &s3.UploadPartCopyInput{
		Bucket:     aws.String(destBucket),
		Key:        aws.String(destKey),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		CopySource: aws.String(sourceBucket + "/" + sourceKey),
	}
	if start != nil && end != nil {
		input.CopySourceRange = aws.String(httpRange(*start, *end))
	}
	out, err := c.s3.UploadPartCopy(ctx, input)
	if err != nil {
		return "", classify(err)
	}
	if out.CopyPartResult == nil {
		return "", nil
	}
	return aws.ToString(out.CopyPartResult.ETag), nil
}

func (c *Client) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error) {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{ETag: aws.String(p.ETag), PartNumber: aws.Int32(p.PartNumber)}
	}
	out, err := c.s3.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.ETag), nil
}

func (c *Client) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	_, err := c.s3.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) ListMultipart(ctx context.Context, bucket string) ([]PendingUpload, error) {
	out, err := c.s3.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, classify(err)
	}
	pending := make([]PendingUpload, 0, len(out.Uploads))
	for _, u := range out.Uploads {
		started := ""
		if u.Initiated != nil {
			started = u.Initiated.String()
		}
		pending = append(pending, PendingUpload{
			Key:      aws.ToString(u.Key),
			UploadID: aws.ToString(u.UploadId),
			Started:  started,
		})
	}
	return pending, nil
}

func (c *Client) GetObjectACL(ctx context.Context, bucket, key string) (string, error) {
	out, err := c.s3.GetObjectAcl(ctx, &s3.GetObjectAclInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return "", classify(err)
	}
	if len(out.Grants) == 0 {
		return "", nil
	}
	return string(out.Grants[0].Permission), nil
}

func (c *Client) SetObjectACL(ctx context.Context, bucket, key, acl string) error {
	_, err := c.s3.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACL(acl),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func httpRange(start, end int64) string {
	return "bytes=" + itoa(start) + "-" + itoa(end)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// classify maps an aws-sdk-go-v2/smithy-go error into an *s3err.Error
// so the retry executor can decide whether to retry it, grounded on
// the teacher's internal/http.ClassifyError but using the status code
// of a typed *smithyhttp.ResponseError (plus errors reporting
// Timeout()) instead of string matching.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == 429 || status >= 500:
			return s3err.New(s3err.Transient, "s3 request", err)
		case status >= 400:
			return s3err.New(s3err.ClientSide, "s3 request", err)
		}
	}

	var ctxErr interface{ Timeout() bool }
	if errors.As(err, &ctxErr) && ctxErr.Timeout() {
		return s3err.New(s3err.Transient, "s3 request", err)
	}

	// Unknown shape: treat as transient so a single unclassifiable
	// error doesn't silently stop retrying; the retry cap still
	// bounds total time regardless.
	return s3err.New(s3err.Transient, "s3 request", err)
}
