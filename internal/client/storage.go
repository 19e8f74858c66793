package client

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// StorageClient wraps the Google Cloud Storage client. It is the alternate
// audio store when no R2 bucket is configured.
type StorageClient struct {
	client     *storage.Client
	bucketName string
}

// NewStorageClient creates a new storage client.
func NewStorageClient(ctx context.Context, bucketName string) (*StorageClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &StorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Close closes the client.
func (c *StorageClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Upload uploads data to cloud storage and returns the object URL.
func (c *StorageClient) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	bucket := c.client.Bucket(c.bucketName)
	obj := bucket.Object(key)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", err
	}

	if err := w.Close(); err != nil {
		return "", err
	}

	return "gs://" + c.bucketName + "/" + key, nil
}

// Download downloads data from cloud storage.
func (c *StorageClient) Download(ctx context.Context, key string) ([]byte, error) {
	bucket := c.client.Bucket(c.bucketName)
	obj := bucket.Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// Delete deletes an object from cloud storage.
func (c *StorageClient) Delete(ctx context.Context, key string) error {
	bucket := c.client.Bucket(c.bucketName)
	obj := bucket.Object(key)
	return obj.Delete(ctx)
}
