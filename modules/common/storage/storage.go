package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Store - 생성 이미지 저장소 (Supabase Storage / MinIO)
type Store interface {
	Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, objectPath string) ([]byte, error)
	SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
}

// GeneratedObjectPath - "<userId>/<unixMillis>-generated.<ext>"
func GeneratedObjectPath(userID string, now time.Time, ext string) string {
	return fmt.Sprintf("%s/%d-generated.%s", userID, now.UnixMilli(), ext)
}

// IsAbsoluteURL - http:// 또는 https:// 로 시작하는지
func IsAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ObjectKeyFromStored - 저장된 값에서 마지막 두 세그먼트("<userId>/<file>") 추출
func ObjectKeyFromStored(stored string) string {
	segments := strings.Split(stored, "/")
	if len(segments) <= 2 {
		return stored
	}
	return strings.Join(segments[len(segments)-2:], "/")
}

// ParseObjectURL - Supabase 오브젝트 URL 에서 bucket / path 추출
// 지원 형식: /storage/v1/object/{public|sign|authenticated}/<bucket>/<path>
func ParseObjectURL(raw string) (bucket, objectPath string, ok bool) {
	parsed, err := url.Parse(raw)
	if err != nil || !IsAbsoluteURL(raw) {
		return "", "", false
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if segment != "object" || i == 0 || segments[i-1] != "v1" {
			continue
		}
		rest := segments[i+1:]
		if len(rest) < 3 {
			return "", "", false
		}
		switch rest[0] {
		case "public", "sign", "authenticated":
		default:
			return "", "", false
		}
		bucket = rest[1]
		objectPath = strings.Join(rest[2:], "/")
		if bucket == "" || objectPath == "" {
			return "", "", false
		}
		if unescaped, err := url.PathUnescape(objectPath); err == nil {
			objectPath = unescaped
		}
		return bucket, objectPath, true
	}
	return "", "", false
}

// ContentTypeForPath - 확장자로 MIME 타입 추정
func ContentTypeForPath(objectPath string) string {
	switch strings.ToLower(path.Ext(objectPath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// ResolveStoredURL - 절대 URL 은 그대로, 저장 경로면 "<userId>/<file>" 로 새 signed URL 발급
// 서명 실패 시 저장값과 에러를 함께 반환
func ResolveStoredURL(ctx context.Context, store Store, bucket, stored string, ttl time.Duration) (string, error) {
	if stored == "" || IsAbsoluteURL(stored) {
		return stored, nil
	}
	signed, err := store.SignedURL(ctx, bucket, ObjectKeyFromStored(stored), ttl)
	if err != nil {
		return stored, fmt.Errorf("failed to re-sign %s: %w", stored, err)
	}
	if signed == "" {
		return stored, fmt.Errorf("failed to re-sign %s: empty signed URL", stored)
	}
	return signed, nil
}

// SignedObjectFromURL - 만료되는 서명 URL 에서 bucket / path 추출
// Supabase "/object/sign/..." 와 S3(MinIO) presigned URL 만 대상, public URL 은 제외
func SignedObjectFromURL(raw string) (bucket, objectPath string, ok bool) {
	parsed, err := url.Parse(raw)
	if err != nil || !IsAbsoluteURL(raw) {
		return "", "", false
	}

	if strings.Contains(parsed.Path, "/object/sign/") {
		return ParseObjectURL(raw)
	}

	if parsed.Query().Get("X-Amz-Signature") == "" {
		return "", "", false
	}
	bucket, objectPath, found := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
	if !found || bucket == "" || objectPath == "" {
		return "", "", false
	}
	return bucket, objectPath, true
}

// RefreshStoredURL - 조회 시점에 바로 받을 수 있는 URL 로 변환
// 서명 URL 은 같은 객체로 다시 서명, 그 외는 ResolveStoredURL 과 동일
func RefreshStoredURL(ctx context.Context, store Store, bucket, stored string, ttl time.Duration) (string, error) {
	signedBucket, objectPath, ok := SignedObjectFromURL(stored)
	if !ok {
		return ResolveStoredURL(ctx, store, bucket, stored, ttl)
	}

	signed, err := store.SignedURL(ctx, signedBucket, objectPath, ttl)
	if err != nil {
		return stored, fmt.Errorf("failed to re-sign %s/%s: %w", signedBucket, objectPath, err)
	}
	if signed == "" {
		return stored, fmt.Errorf("failed to re-sign %s/%s: empty signed URL", signedBucket, objectPath)
	}
	return signed, nil
}
