package fallback

import (
	"strings"
)

const (
	// GenericCaption - AI 응답을 쓸 수 없을 때의 기본 캡션
	GenericCaption = "Check out our amazing product!"
	// GenericHashtags - 기본 해시태그 (공백 구분 저장 형식)
	GenericHashtags = "marketing product brandnew"

	// ItemErrorCaption - 이미지 한 장 처리 중 에러
	ItemErrorCaption = "Failed to generate caption for this image. Please try again."
	// TaskErrorCaption - 작업 자체가 중단된 경우 (panic 등)
	TaskErrorCaption = "Failed to generate caption. Please try again."
)

// GenericHashtagList - GenericHashtags 를 리스트로
func GenericHashtagList() []string {
	return strings.Fields(GenericHashtags)
}

// ItemErrorHashtags - 이미지 단위 에러 표식
func ItemErrorHashtags() []string {
	return []string{"error", "retry"}
}

// TaskErrorHashtags - 작업 단위 에러 표식
func TaskErrorHashtags() []string {
	return []string{"error"}
}

// FirstLine - 공백이 아닌 첫 줄, 없으면 fallback
func FirstLine(text, fallback string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

// NormalizeHashtags - 빈 값/중복 제거
// 저장 시 공백으로 join 되므로 태그 내부 공백도 제거한다
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "")
		if strings.TrimLeft(tag, "#") == "" {
			continue
		}
		key := strings.ToLower(strings.TrimLeft(tag, "#"))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
