package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseStore - Supabase Storage 백엔드
// 업로드는 FileOptions 가 클라이언트 공용 헤더를 바꾸므로 호출마다 새 클라이언트를 쓴다.
// client 는 서명/다운로드 전용이라 헤더가 바뀌지 않고 동시 사용해도 안전하다.
type SupabaseStore struct {
	baseURL string
	apiKey  string
	client  *storage_go.Client
}

// NewSupabaseStore - 프로젝트 URL 과 키(service role)로 Store 생성
func NewSupabaseStore(projectURL, apiKey string) *SupabaseStore {
	baseURL := strings.TrimRight(projectURL, "/") + supabase.STORGAGE_URL
	return &SupabaseStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  newStorageClient(baseURL, apiKey),
	}
}

func newStorageClient(baseURL, apiKey string) *storage_go.Client {
	return storage_go.NewClient(baseURL, apiKey, map[string]string{"apikey": apiKey})
}

func (s *SupabaseStore) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentTypeForPath(objectPath)
	}

	log.Info().Str("bucket", bucket).Str("path", objectPath).Int("bytes", len(data)).Msg("📤 [Storage] Uploading object")

	upsert := false
	uploader := newStorageClient(s.baseURL, s.apiKey)
	_, err := uploader.UploadFile(bucket, objectPath, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *SupabaseStore) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.client.DownloadFile(bucket, objectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s/%s: %w", bucket, objectPath, err)
	}
	log.Debug().Str("bucket", bucket).Str("path", objectPath).Int("bytes", len(data)).Msg("📥 [Storage] Object downloaded")
	return data, nil
}

func (s *SupabaseStore) SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := s.client.CreateSignedUrl(bucket, objectPath, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s/%s: %w", bucket, objectPath, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("empty signed URL for %s/%s", bucket, objectPath)
	}
	return resp.SignedURL, nil
}
