// Package storage mirrors signed documents to Azure Blob Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
)

// System stores and removes blobs in a single container.
type System interface {
	// Start registers a startup hook that ensures the container exists.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to the blob at key, replacing any existing blob.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	// Download returns the blob at key. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

type azure struct {
	client    *azblob.Client
	container string
	prefix    string
	logger    *slog.Logger
}

// New creates the Azure-backed System. No request is made until Start or
// the first operation.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &azure{
		client:    client,
		container: cfg.ContainerName,
		prefix:    cfg.Prefix,
		logger:    logger.With("system", "storage"),
	}, nil
}

func newClient(cfg *Config) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return client, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create storage credential: %w", err)
	}
	client, err := azblob.NewClient(cfg.ServiceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	a.logger.Info("starting storage system", "container", a.container)

	lc.OnStartup("storage container", func(ctx context.Context) error {
		_, err := a.client.CreateContainer(ctx, a.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("create container %s: %w", a.container, err)
		}
		a.logger.Info("storage container ready", "container", a.container)
		return nil
	})
	return nil
}

func (a *azure) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	name, err := a.blobName(key)
	if err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := a.client.UploadStream(ctx, a.container, name, r, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", name, err)
	}
	return nil
}

func (a *azure) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := a.blobName(key)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", name, err)
	}
	return resp.Body, nil
}

func (a *azure) Delete(ctx context.Context, key string) error {
	name, err := a.blobName(key)
	if err != nil {
		return err
	}

	if _, err := a.client.DeleteBlob(ctx, a.container, name, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func (a *azure) Exists(ctx context.Context, key string) (bool, error) {
	name, err := a.blobName(key)
	if err != nil {
		return false, err
	}

	bc := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(name)
	if _, err := bc.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check blob %s: %w", name, err)
	}
	return true, nil
}

func (a *azure) blobName(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if a.prefix == "" {
		return key, nil
	}
	return path.Join(a.prefix, key), nil
}

// Key joins segments into a blob key, skipping empty segments.
func Key(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// ValidateKey rejects empty keys and keys containing traversal segments.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == ".." || seg == "." {
			return ErrInvalidKey
		}
	}
	return nil
}
