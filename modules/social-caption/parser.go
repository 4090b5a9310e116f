package socialcaption

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"promo-studio-server/modules/common/fallback"
)

var (
	ErrNoJSONObject   = errors.New("no JSON object in AI response")
	ErrSchemaMismatch = errors.New("AI response does not match caption schema")
)

// ParsedCaption - {"caption": string, "hashtags": [string...]}
type ParsedCaption struct {
	Caption  string
	Hashtags []string
}

type captionSchema struct {
	Caption  *string  `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// ParseCaptionResponse - 첫 번째 균형 잡힌 {...} 객체를 캡션 스키마로 해석
//
//	객체 없음        → ErrNoJSONObject
//	JSON/스키마 불일치 → ErrSchemaMismatch
func ParseCaptionResponse(text string) (ParsedCaption, error) {
	object, ok := ExtractJSONObject(text)
	if !ok {
		return ParsedCaption{}, ErrNoJSONObject
	}

	var raw captionSchema
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return ParsedCaption{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if raw.Caption == nil || strings.TrimSpace(*raw.Caption) == "" {
		return ParsedCaption{}, fmt.Errorf("%w: caption is missing or empty", ErrSchemaMismatch)
	}
	if raw.Hashtags == nil {
		return ParsedCaption{}, fmt.Errorf("%w: hashtags is missing", ErrSchemaMismatch)
	}

	return ParsedCaption{
		Caption:  strings.TrimSpace(*raw.Caption),
		Hashtags: fallback.NormalizeHashtags(raw.Hashtags),
	}, nil
}

// ExtractJSONObject - 텍스트에서 첫 '{' 부터 짝이 맞는 '}' 까지 반환
// 문자열 리터럴 안의 괄호와 이스케이프는 무시
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false

		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}

			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}

		// 닫히지 않은 객체면 다음 '{' 에서 다시 시도
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
