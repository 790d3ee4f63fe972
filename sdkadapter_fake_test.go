package s3tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/s3tool/s3tool/internal/sdkadapter"
)

// fakeAPI is an in-process, in-memory stand-in for sdkadapter.API, in
// the spirit of the teacher's table-driven fakes over live AWS calls.
// It supports exactly the multipart sequence the orchestrator drives:
// create, upload/copy parts in any order, complete.
type fakeAPI struct {
	mu          sync.Mutex
	objects     map[string]fakeObject
	uploads     map[string]*fakeUpload
	nextUpload  int
	forcedFails map[string]int // "bucket/key#part" -> remaining forced failures
}

type fakeObject struct {
	body     []byte
	metadata map[string]string
}

type fakeUpload struct {
	bucket, key string
	metadata    map[string]string
	parts       map[int32][]byte
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		objects:     make(map[string]fakeObject),
		uploads:     make(map[string]*fakeUpload),
		forcedFails: make(map[string]int),
	}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (f *fakeAPI) HeadObject(ctx context.Context, bucket, key string) (*sdkadapter.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("fakeAPI: %s/%s not found", bucket, key)
	}
	meta := make(map[string]string, len(obj.metadata))
	for k, v := range obj.metadata {
		meta[k] = v
	}
	return &sdkadapter.ObjectInfo{ContentLength: int64(len(obj.body)), Metadata: meta}, nil
}

func (f *fakeAPI) GetObjectRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("fakeAPI: %s/%s not found", bucket, key)
	}
	if end >= int64(len(obj.body)) {
		end = int64(len(obj.body)) - 1
	}
	if start > end {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return io.NopCloser(bytes.NewReader(obj.body[start : end+1])), nil
}

func (f *fakeAPI) ListObjects(ctx context.Context, bucket, prefix, delimiter, token string) (*sdkadapter.ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &sdkadapter.ListPage{}
	for k, obj := range f.objects {
		if len(k) <= len(bucket)+1 || k[:len(bucket)+1] != bucket+"/" {
			continue
		}
		key := k[len(bucket)+1:]
		page.Objects = append(page.Objects, sdkadapter.ListedObject{Key: key, Size: int64(len(obj.body))})
	}
	return page, nil
}

func (f *fakeAPI) ListBuckets(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeAPI) Delete(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objKey(bucket, key))
	return nil
}

func (f *fakeAPI) Exists(ctx context.Context, bucket, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[objKey(bucket, key)]
	return ok, nil
}

func (f *fakeAPI) UpdateMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[objKey(bucket, key)]
	if !ok {
		return fmt.Errorf("fakeAPI: %s/%s not found", bucket, key)
	}
	obj.metadata = metadata
	f.objects[objKey(bucket, key)] = obj
	return nil
}

func (f *fakeAPI) InitiateMultipart(ctx context.Context, bucket, key string, metadata map[string]string, acl string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUpload++
	id := fmt.Sprintf("upload-%d", f.nextUpload)
	f.uploads[id] = &fakeUpload{bucket: bucket, key: key, metadata: metadata, parts: make(map[int32][]byte)}
	return id, nil
}

func (f *fakeAPI) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body io.Reader, length int64) (string, error) {
	failKey := fmt.Sprintf("%s/%s#%d", bucket, key, partNumber)
	f.mu.Lock()
	if remaining := f.forcedFails[failKey]; remaining > 0 {
		f.forcedFails[failKey] = remaining - 1
		f.mu.Unlock()
		return "", fmt.Errorf("fakeAPI: forced failure on part %d", partNumber)
	}
	f.mu.Unlock()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("fakeAPI: unknown upload %s", uploadID)
	}
	up.parts[partNumber] = data
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeAPI) CopyPart(ctx context.Context, destBucket, destKey, uploadID string, partNumber int32, sourceBucket, sourceKey string, start, end *int64) (string, error) {
	f.mu.Lock()
	obj, ok := f.objects[objKey(sourceBucket, sourceKey)]
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("fakeAPI: %s/%s not found", sourceBucket, sourceKey)
	}
	s, e := int64(0), int64(len(obj.body))-1
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	}
	if e >= int64(len(obj.body)) {
		e = int64(len(obj.body)) - 1
	}
	return f.UploadPart(ctx, destBucket, destKey, uploadID, partNumber, bytes.NewReader(obj.body[s:e+1]), e-s+1)
}

func (f *fakeAPI) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []sdkadapter.CompletedPart) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("fakeAPI: unknown upload %s", uploadID)
	}

	var body []byte
	for _, p := range parts {
		body = append(body, up.parts[p.PartNumber]...)
	}
	f.objects[objKey(bucket, key)] = fakeObject{body: body, metadata: up.metadata}
	delete(f.uploads, uploadID)
	return "etag-final", nil
}

func (f *fakeAPI) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeAPI) ListMultipart(ctx context.Context, bucket string) ([]sdkadapter.PendingUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sdkadapter.PendingUpload
	for id, up := range f.uploads {
		if up.bucket == bucket {
			out = append(out, sdkadapter.PendingUpload{Key: up.key, UploadID: id})
		}
	}
	return out, nil
}

func (f *fakeAPI) GetObjectACL(ctx context.Context, bucket, key string) (string, error) { return "", nil }
func (f *fakeAPI) SetObjectACL(ctx context.Context, bucket, key, acl string) error       { return nil }

var _ sdkadapter.API = (*fakeAPI)(nil)
