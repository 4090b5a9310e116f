package gallery

import (
	"context"
	"time"

	"promo-studio-server/modules/common/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	// 대시보드의 DB fallback 과 같은 범위 (최근 50개)
	recoverScanLimit = 50
)

// Repository - 대시보드 조회용 DB 접근 (database.Client 가 구현)
type Repository interface {
	GetCredits(ctx context.Context, userID string) (int, error)
	ListCategories(ctx context.Context) ([]model.BusinessCategory, error)
	ListModelTypes(ctx context.Context) ([]model.ModelType, error)
	ListGeneratedImages(ctx context.Context, userID string, limit int) ([]model.GeneratedImage, error)
	ListCaptions(ctx context.Context, userID string, limit int) ([]model.SocialMediaCaption, error)
	FindImageURL(ctx context.Context, userID, imageID string) (string, error)
	DeleteCaption(ctx context.Context, userID, captionID string) error
}

type CreditsResponse struct {
	Credits int `json:"credits"`
}

type CategoryView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RequiresModel bool   `json:"requiresModel"`
}

type CatalogResponse struct {
	Categories []CategoryView    `json:"categories"`
	ModelTypes []model.ModelType `json:"modelTypes"`
}

type ImagesResponse struct {
	Images []model.GeneratedImage `json:"images"`
}

// CaptionView - 저장된 캡션 (hashtags 는 리스트로 분리)
type CaptionView struct {
	ID        string     `json:"id"`
	Caption   string     `json:"caption"`
	Hashtags  []string   `json:"hashtags"`
	ImageIDs  []string   `json:"image_ids"`
	ImageURL  *string    `json:"image_url"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type CaptionsResponse struct {
	Captions []CaptionView `json:"captions"`
}
