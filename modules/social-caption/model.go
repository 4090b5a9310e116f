package socialcaption

import (
	"context"

	"promo-studio-server/modules/common/model"
)

// CaptionRequest - POST body
type CaptionRequest struct {
	ImageIDs []string `json:"imageIds"`
}

// CaptionResult - 이미지 한 장에 대한 결과
type CaptionResult struct {
	ImageURL  string   `json:"image_url"`
	Caption   string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
	CaptionID *string  `json:"captionId"`
}

// CaptionResponse - 성공 응답
type CaptionResponse struct {
	Captions []CaptionResult `json:"captions"`
}

// CaptionGeneratedPayload - caption.generated 이벤트 payload
type CaptionGeneratedPayload struct {
	ImageID string        `json:"imageId"`
	Result  CaptionResult `json:"result"`
}

// Repository - service role 권한 DB 접근 (database.Client 가 구현)
type Repository interface {
	FetchImagesByIDs(ctx context.Context, userID string, ids []string) ([]model.CaptionSourceImage, error)
	InsertCaption(ctx context.Context, rec model.SocialMediaCaption) (*model.SocialMediaCaption, error)
}

// ColumnChecker - image_url 컬럼 존재 여부 확인
type ColumnChecker interface {
	CheckCaptionImageURLColumn(ctx context.Context) (bool, error)
}
