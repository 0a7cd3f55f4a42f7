package storage

import (
	"context"
	"fmt"
	"io"

	apperrors "go-ocr-enhancer/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStore keeps artifacts as block blobs in one container. Artifact keys
// are used as blob names.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore connects with a shared key and makes sure the container exists.
func NewAzureStore(ctx context.Context, accountName, accountKey, container string) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewStorageError("invalid azure credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create azure client", err)
	}

	_, err = client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, apperrors.NewStorageError("failed to create azure container", err)
	}

	return &AzureStore{client: client, container: container}, nil
}

// Save implements ArtifactStore.
func (s *AzureStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if _, _, err := SplitKey(key); err != nil {
		return err
	}
	_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return apperrors.NewStorageError("upload failed", err)
	}
	return nil
}

// Open implements ArtifactStore.
func (s *AzureStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, apperrors.NewStorageError("download failed", err)
	}
	return resp.Body, nil
}
