package s3tool

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3tool/s3tool/internal/retry"
)

func writeKeyPair(t *testing.T, dir, name string) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".pem"), pem.EncodeToMemory(block), 0o600))
	return priv
}

func newTestClient(t *testing.T, api *fakeAPI, keyDir string) *Client {
	t.Helper()
	cfg := Config{Region: "us-east-1", ChunkSize: 64, KeyDir: keyDir}
	client, err := New(context.Background(), cfg, withAPI(api))
	require.NoError(t, err)
	return client
}

func writeTempFile(t *testing.T, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(path, contents, 0o600))
	return path
}

func TestUploadDownload_RoundTrip_Unencrypted(t *testing.T) {
	sizes := []int{0, 1, 63, 64, 65, 200}
	for _, size := range sizes {
		contents := make([]byte, size)
		for i := range contents {
			contents[i] = byte(i)
		}

		api := newFakeAPI()
		client := newTestClient(t, api, t.TempDir())
		ctx := context.Background()

		src := writeTempFile(t, contents)
		uploadOpts, err := NewUploadOptions("bucket", "key", src)
		require.NoError(t, err)
		_, err = client.Upload(ctx, uploadOpts)
		require.NoErrorf(t, err, "Upload() size=%d", size)

		dst := filepath.Join(t.TempDir(), "dst")
		downloadOpts, err := NewDownloadOptions("bucket", "key", dst)
		require.NoError(t, err)
		_, err = client.Download(ctx, downloadOpts)
		require.NoErrorf(t, err, "Download() size=%d", size)

		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equalf(t, contents, got, "size=%d round trip mismatch", size)
	}
}

func TestUploadDownload_RoundTrip_Encrypted(t *testing.T) {
	keyDir := t.TempDir()
	writeKeyPair(t, keyDir, "alice")

	api := newFakeAPI()
	client := newTestClient(t, api, keyDir)
	ctx := context.Background()

	contents := []byte("the quick brown fox jumps over the lazy dog, repeated enough to span multiple parts. ")
	for len(contents) < 300 {
		contents = append(contents, contents...)
	}
	src := writeTempFile(t, contents)

	uploadOpts, err := NewUploadOptions("bucket", "secret-key", src, WithKeyName("alice"))
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "dst")
	downloadOpts, err := NewDownloadOptions("bucket", "secret-key", dst)
	require.NoError(t, err)
	_, err = client.Download(ctx, downloadOpts)
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, contents, got)
}

func TestDownload_WrongKeyPair_Fails(t *testing.T) {
	keyDir := t.TempDir()
	writeKeyPair(t, keyDir, "alice")

	api := newFakeAPI()
	client := newTestClient(t, api, keyDir)
	ctx := context.Background()

	src := writeTempFile(t, []byte("top secret"))
	uploadOpts, err := NewUploadOptions("bucket", "secret-key", src, WithKeyName("alice"))
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	require.NoError(t, err)

	// A second client whose keystore only knows "mallory" cannot unwrap
	// the object's symmetric key at all.
	otherKeyDir := t.TempDir()
	writeKeyPair(t, otherKeyDir, "mallory")
	otherClient := newTestClient(t, api, otherKeyDir)

	dst := filepath.Join(t.TempDir(), "dst")
	downloadOpts, err := NewDownloadOptions("bucket", "secret-key", dst)
	require.NoError(t, err)
	_, err = otherClient.Download(ctx, downloadOpts)
	assert.Error(t, err)
}

func TestAddAndRemoveEncryptedKey(t *testing.T) {
	keyDir := t.TempDir()
	writeKeyPair(t, keyDir, "alice")
	writeKeyPair(t, keyDir, "bob")

	api := newFakeAPI()
	client := newTestClient(t, api, keyDir)
	ctx := context.Background()

	src := writeTempFile(t, []byte("shared secret payload"))
	uploadOpts, err := NewUploadOptions("bucket", "shared-key", src, WithKeyName("alice"))
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	require.NoError(t, err)

	require.NoError(t, client.AddEncryptedKey(ctx, "bucket", "shared-key", "bob"))

	dst := filepath.Join(t.TempDir(), "dst")
	downloadOpts, err := NewDownloadOptions("bucket", "shared-key", dst)
	require.NoError(t, err)
	_, err = client.Download(ctx, downloadOpts)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "shared secret payload", string(got))

	require.NoError(t, client.RemoveEncryptedKey(ctx, "bucket", "shared-key", "alice"))
	assert.Error(t, client.RemoveEncryptedKey(ctx, "bucket", "shared-key", "bob"),
		"removing the last remaining wrapping must fail")
}

func TestUpload_RetriesPartThenSucceeds(t *testing.T) {
	api := newFakeAPI()
	api.forcedFails["bucket/key#2"] = 2

	client := newTestClient(t, api, t.TempDir())
	ctx := context.Background()

	contents := make([]byte, 200)
	src := writeTempFile(t, contents)
	uploadOpts, err := NewUploadOptions("bucket", "key", src, WithRetry(retry.Config{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}))
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	assert.NoError(t, err)
}

func TestUpload_ExhaustsRetriesAndFails(t *testing.T) {
	api := newFakeAPI()
	api.forcedFails["bucket/key#1"] = 999

	client := newTestClient(t, api, t.TempDir())
	ctx := context.Background()

	src := writeTempFile(t, make([]byte, 10))
	uploadOpts, err := NewUploadOptions("bucket", "key", src, WithRetry(retry.Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}))
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	assert.Error(t, err)
}

func TestCopy_PreservesEncryptionEnvelope(t *testing.T) {
	keyDir := t.TempDir()
	writeKeyPair(t, keyDir, "alice")

	api := newFakeAPI()
	client := newTestClient(t, api, keyDir)
	ctx := context.Background()

	src := writeTempFile(t, []byte("copy me, ciphertext and all"))
	uploadOpts, err := NewUploadOptions("bucket", "src-key", src, WithKeyName("alice"))
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	require.NoError(t, err)

	copyOpts, err := NewCopyOptions("bucket", "src-key", "bucket", "dst-key")
	require.NoError(t, err)
	_, err = client.Copy(ctx, copyOpts)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "dst")
	downloadOpts, err := NewDownloadOptions("bucket", "dst-key", dst)
	require.NoError(t, err)
	_, err = client.Download(ctx, downloadOpts)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "copy me, ciphertext and all", string(got))
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantVer    string
		wantErr    bool
	}{
		{uri: "s3://my-bucket/my/key", wantBucket: "my-bucket", wantKey: "my/key"},
		{uri: "s3://my-bucket/my/key?versionId=abc123", wantBucket: "my-bucket", wantKey: "my/key", wantVer: "abc123"},
		{uri: "http://my-bucket/key", wantErr: true},
		{uri: "s3://no-key", wantErr: true},
	}
	for _, tt := range tests {
		bucket, key, ver, err := ParseURI(tt.uri)
		if tt.wantErr {
			assert.Errorf(t, err, "ParseURI(%q)", tt.uri)
			continue
		}
		require.NoErrorf(t, err, "ParseURI(%q)", tt.uri)
		assert.Equal(t, tt.wantBucket, bucket)
		assert.Equal(t, tt.wantKey, key)
		assert.Equal(t, tt.wantVer, ver)
	}
}

func TestListDeleteExists(t *testing.T) {
	api := newFakeAPI()
	client := newTestClient(t, api, t.TempDir())
	ctx := context.Background()

	src := writeTempFile(t, []byte("x"))
	uploadOpts, err := NewUploadOptions("bucket", "a/b", src)
	require.NoError(t, err)
	_, err = client.Upload(ctx, uploadOpts)
	require.NoError(t, err)

	exists, err := client.Exists(ctx, "bucket", "a/b")
	require.NoError(t, err)
	assert.True(t, exists)

	objects, err := client.List(ctx, "bucket", "a/", "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "a/b", objects[0].Key)

	require.NoError(t, client.Delete(ctx, "bucket", "a/b"))
	exists, err = client.Exists(ctx, "bucket", "a/b")
	require.NoError(t, err)
	assert.False(t, exists)
}
