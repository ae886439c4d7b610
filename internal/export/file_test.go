package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "metrics.json.gz")

	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, `{"ok":true}`)
		return err
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic header")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(b))
}

func TestWriteFile_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.csv")
	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "rank\n")
		return err
	}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rank\n", string(b))
}

func TestWriteFile_PropagatesWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	err := WriteFile(path, func(io.Writer) error { return errors.New("boom") })
	require.EqualError(t, err, "boom")
}

type fakeBlob struct {
	uploads map[string]string
	opts    map[string]*azblob.UploadStreamOptions
}

func (f *fakeBlob) UploadStream(_ context.Context, container, name string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return azblob.UploadStreamResponse{}, err
	}
	f.uploads[container+"/"+name] = string(b)
	f.opts[name] = o
	return azblob.UploadStreamResponse{}, nil
}

func TestBlobUploader(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "summary.json")
	gzPath := filepath.Join(dir, "dump.json.gz")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(gzPath, []byte("zz"), 0o644))

	fake := &fakeBlob{uploads: map[string]string{}, opts: map[string]*azblob.UploadStreamOptions{}}
	u := &BlobUploader{client: fake, container: "exports", prefix: "/daily/"}

	names, err := u.UploadFiles(context.Background(), jsonPath, gzPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily/summary.json", "daily/dump.json.gz"}, names)
	assert.Equal(t, "{}", fake.uploads["exports/daily/summary.json"])

	h := fake.opts["daily/summary.json"].HTTPHeaders
	assert.Equal(t, "application/json", *h.BlobContentType)
	assert.Nil(t, h.BlobContentEncoding)

	h = fake.opts["daily/dump.json.gz"].HTTPHeaders
	assert.Equal(t, "application/json", *h.BlobContentType)
	assert.Equal(t, "gzip", *h.BlobContentEncoding)
}

func TestBlobUploader_MissingFile(t *testing.T) {
	u := &BlobUploader{client: &fakeBlob{}, container: "c"}
	_, err := u.UploadFiles(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestNewBlobUploader_Validates(t *testing.T) {
	_, err := NewBlobUploader("", "c", "")
	require.Error(t, err)
}
