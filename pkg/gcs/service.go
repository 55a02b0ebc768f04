package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

type GCSClient struct {
	client     *storage.Client
	bucketName string
}

func NewGCSClient(ctx context.Context, bucketName string) (*GCSClient, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload writes content to objectPath and returns its gs:// URI
func (g *GCSClient) Upload(ctx context.Context, objectPath, contentType string, content io.Reader) (string, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectPath)

	writer := obj.NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to copy content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return ObjectURI(g.bucketName, objectPath), nil
}

// Exists reports whether objectPath is already stored
func (g *GCSClient) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := g.client.Bucket(g.bucketName).Object(objectPath).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

// ObjectURI formats a gs:// URI
func ObjectURI(bucket, objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(objectPath, "/"))
}

// RecordingPath is where a call recording is archived:
// recordings/<tenant>/<callSid>/<recordingSid>.wav
func RecordingPath(tenantID, callSid, recordingSid string) string {
	if recordingSid == "" {
		recordingSid = callSid
	}
	return path.Join("recordings", tenantID, callSid, recordingSid+".wav")
}
