package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore uploads blobs to a Supabase storage bucket and returns their
// public URLs. This is the production BlobStore implementation.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore configures a Supabase-backed blob store.
func NewSupabaseStore(projectURL, serviceKey, bucket string) (*SupabaseStore, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" {
		return nil, errors.New("storage: supabase url is required")
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("storage: supabase service key is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: supabase bucket is required")
	}
	client := storage_go.NewClient(projectURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStore{client: client, bucket: bucket}, nil
}

// Put uploads the blob and returns its permanent public URL. Uploads are
// bounded by the caller's context and capped at 30s.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	done := make(chan error, 1)
	go func() {
		upsert := true
		_, upErr := s.client.UploadFile(s.bucket, cleanKey, bytes.NewReader(data), storage_go.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		done <- upErr
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("storage: supabase upload: %w", err)
		}
	case <-time.After(30 * time.Second):
		return "", fmt.Errorf("storage: supabase upload timed out")
	}

	public := s.client.GetPublicUrl(s.bucket, cleanKey)
	if public.SignedURL == "" {
		return "", fmt.Errorf("storage: supabase public url unavailable for %s", cleanKey)
	}
	return public.SignedURL, nil
}

var _ BlobStore = (*SupabaseStore)(nil)
