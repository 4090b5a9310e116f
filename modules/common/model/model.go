package model

import (
	"strings"
	"time"
)

// UserCredits - user_credits 테이블 구조
type UserCredits struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

// BusinessCategory - business_categories 테이블 구조
type BusinessCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelType - model_types 테이블 구조
type ModelType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GeneratedImage - generated_images 테이블 구조
type GeneratedImage struct {
	ID                 string     `json:"id,omitempty"`
	UserID             string     `json:"user_id"`
	BusinessCategoryID *string    `json:"business_category_id"`
	ModelTypeID        *string    `json:"model_type_id"`
	OriginalImageURL   string     `json:"original_image_url"`
	GeneratedImageURL  string     `json:"generated_image_url"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
}

// CaptionSourceImage - 캡션 생성용 이미지 조회 결과 (business_categories 조인 포함)
type CaptionSourceImage struct {
	ID                 string  `json:"id"`
	GeneratedImageURL  string  `json:"generated_image_url"`
	BusinessCategoryID *string `json:"business_category_id"`
	BusinessCategories *struct {
		Name string `json:"name"`
	} `json:"business_categories"`
}

// CategoryName - 조인된 카테고리 이름 (없으면 빈 문자열)
func (c CaptionSourceImage) CategoryName() string {
	if c.BusinessCategories == nil {
		return ""
	}
	return c.BusinessCategories.Name
}

// SocialMediaCaption - social_media_captions 테이블 구조
type SocialMediaCaption struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"user_id"`
	Caption   string     `json:"caption"`
	Hashtags  string     `json:"hashtags"`
	ImageIDs  []string   `json:"image_ids"`
	ImageURL  *string    `json:"image_url,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// JoinHashtags - 해시태그 목록을 공백 구분 문자열로 저장 형식 변환
func JoinHashtags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, " ")
}

// SplitHashtags - 저장된 해시태그 문자열을 목록으로 분리 (빈 토큰 제거)
func SplitHashtags(joined string) []string {
	return strings.Fields(joined)
}
