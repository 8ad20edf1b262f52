// Package azure implements the Azure Blob Storage backend using shared key
// authentication against a single container.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/sanctions-web/sanctions-web/internal/config"
	"github.com/sanctions-web/sanctions-web/internal/storage"
)

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Azure)
	})
}

// AzureStorage reads snapshots from one blob container
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// New creates an Azure Blob Storage backend
func New(cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureStorage{
		client:        client,
		containerName: cfg.ContainerName,
	}, nil
}

func (s *AzureStorage) blobClient(path string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(path)
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// Download retrieves a blob body
func (s *AzureStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := s.blobClient(path).DownloadStream(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, s.containerName, path)
		}
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}

	return resp.Body, nil
}

// Exists checks if a blob exists at the specified path
func (s *AzureStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.blobClient(path).GetProperties(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return true, nil
}

// GetMetadata reads blob properties. Azure only records MD5, so the checksum
// is the sha256 blob metadata entry when the publisher set one.
func (s *AzureStorage) GetMetadata(ctx context.Context, path string) (*storage.FileMetadata, error) {
	props, err := s.blobClient(path).GetProperties(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, s.containerName, path)
		}
		return nil, fmt.Errorf("failed to get blob properties: %w", err)
	}

	meta := &storage.FileMetadata{Path: path}
	if props.ContentLength != nil {
		meta.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		meta.LastModified = *props.LastModified
	}
	// metadata keys come back with whatever casing the HTTP layer produced
	for k, v := range props.Metadata {
		if strings.EqualFold(k, "sha256") && v != nil {
			meta.Checksum = *v
		}
	}
	return meta, nil
}
