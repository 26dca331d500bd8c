package s3client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// NewInMemory starts a gofakes3 server backed by memory and returns a client
// for bucketName on it, with the bucket already created. The returned close
// function stops the server.
func NewInMemory(ctx context.Context, bucketName string) (*Client, func(), error) {
	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())

	client, err := New(ctx, Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		ts.Close()
		return nil, nil, err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("in-memory bucket: %w", err)
	}
	return client, ts.Close, nil
}

// TestClient creates an S3 client backed by gofakes3 for testing.
// The test server is automatically cleaned up when the test completes.
func TestClient(t testing.TB, bucketName string) *Client {
	t.Helper()

	client, closeFn, err := NewInMemory(context.Background(), bucketName)
	if err != nil {
		t.Fatalf("failed to start in-memory S3: %v", err)
	}
	t.Cleanup(closeFn)
	return client
}
