package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF 디코더 등록
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"net/http"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder" // WebP 디코더 등록
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rs/zerolog/log"
)

var ErrNotDataURI = errors.New("not a base64 data URI")

// EncodeDataURI - 바이너리를 data:<mime>;base64,... 로 변환
func EncodeDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DetectMimeType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI - data URI 를 (mime, 바이너리)로 분리
// 응답에 따라 ',' 이후 payload 만 오는 경우도 있어 접두사 없는 base64 도 허용
func DecodeDataURI(uri string) (string, []byte, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", nil, ErrNotDataURI
	}

	mimeType := ""
	payload := uri
	if strings.HasPrefix(uri, "data:") {
		header, body, found := strings.Cut(uri, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return "", nil, ErrNotDataURI
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	if mimeType == "" {
		mimeType = DetectMimeType(data)
	}
	return mimeType, data, nil
}

// DetectMimeType - 바이너리 시그니처로 MIME 타입 판별
func DetectMimeType(data []byte) string {
	return http.DetectContentType(data)
}

// ImageMime - 업로드 가능한 이미지 MIME 판별
// 선언된 타입이 지원 목록에 없으면 시그니처로 다시 판별, 그래도 이미지가 아니면 false
func ImageMime(declared string, data []byte) (string, bool) {
	if isSupportedImage(declared) {
		return declared, true
	}
	detected := DetectMimeType(data)
	if isSupportedImage(detected) {
		return detected, true
	}
	return "", false
}

func isSupportedImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return true
	}
	return false
}

// ExtensionForMime - 업로드 파일 확장자
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// ConvertToWebP - PNG/JPEG 바이너리를 WebP 로 변환
func ConvertToWebP(data []byte, quality float32) ([]byte, error) {
	log.Debug().Msgf("🔄 [Image] Converting to WebP (quality: %.1f)", quality)

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Info().Msgf("✅ [Image] %s converted to WebP: %d bytes → %d bytes (%.1f%% reduction)",
		format, len(data), len(webpData),
		float64(len(data)-len(webpData))/float64(len(data))*100)

	return webpData, nil
}
