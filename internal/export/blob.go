package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// blobAPI is the subset of [*azblob.Client] used for uploads.
type blobAPI interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

var _ blobAPI = (*azblob.Client)(nil)

// BlobUploader copies finished export files into an Azure Blob container.
type BlobUploader struct {
	client    blobAPI
	container string
	prefix    string
}

// NewBlobUploader authenticates with DefaultAzureCredential against the
// storage account at accountURL (https://<account>.blob.core.windows.net).
// Blob names are prefix/<file name>.
func NewBlobUploader(accountURL, container, prefix string) (*BlobUploader, error) {
	if accountURL == "" || container == "" {
		return nil, fmt.Errorf("blob upload needs an account URL and a container")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client: %w", err)
	}
	return &BlobUploader{client: client, container: container, prefix: prefix}, nil
}

// BlobName returns the blob name a local file is uploaded under.
func (u *BlobUploader) BlobName(file string) string {
	name := filepath.Base(file)
	if u.prefix == "" {
		return name
	}
	return path.Join(strings.Trim(u.prefix, "/"), name)
}

// UploadFiles uploads each file and returns the blob names in order.
func (u *BlobUploader) UploadFiles(ctx context.Context, files ...string) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, file := range files {
		name, err := u.upload(ctx, file)
		if err != nil {
			return names, err
		}
		slog.InfoContext(ctx, "uploaded export", "file", file, "container", u.container, "blob", name)
		names = append(names, name)
	}
	return names, nil
}

func (u *BlobUploader) upload(ctx context.Context, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close() //nolint:errcheck

	headers := &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType(file))}
	if IsCompressed(file) {
		headers.BlobContentEncoding = to.Ptr("gzip")
	}

	name := u.BlobName(file)
	if _, err := u.client.UploadStream(ctx, u.container, name, f, &azblob.UploadStreamOptions{HTTPHeaders: headers}); err != nil {
		return "", fmt.Errorf("upload %s to %s/%s: %w", file, u.container, name, err)
	}
	return name, nil
}

func contentType(file string) string {
	name := strings.ToLower(file)
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".md":
		return "text/markdown"
	case ".html":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
