package generateimage

import (
	"context"

	"promo-studio-server/modules/common/catalog"
	"promo-studio-server/modules/common/credit"
	"promo-studio-server/modules/common/model"
)

// GenerateRequest - POST body
type GenerateRequest struct {
	ProductImageURL string `json:"productImageUrl"`
	CategoryName    string `json:"categoryName"`
	ModelTypeName   string `json:"modelTypeName,omitempty"`
}

// GenerateResponse - 성공 응답
type GenerateResponse struct {
	Success          bool   `json:"success"`
	ImageURL         string `json:"imageUrl"`
	CreditsRemaining int    `json:"creditsRemaining"`
}

// ImageGeneratedPayload - image.generated 이벤트 payload
type ImageGeneratedPayload struct {
	ImageID      string `json:"imageId,omitempty"`
	ImageURL     string `json:"imageUrl"`
	CategoryName string `json:"categoryName"`
}

// CreditsPayload - credits.updated 이벤트 payload
type CreditsPayload struct {
	Credits int `json:"credits"`
}

// Repository - 사용자 권한으로 동작하는 DB 접근 (database.Client 가 구현)
type Repository interface {
	credit.Store
	catalog.Lookup
	InsertGeneratedImage(ctx context.Context, img model.GeneratedImage) (*model.GeneratedImage, error)
}

// RepositoryFactory - 요청 토큰으로 Repository 생성
type RepositoryFactory func(token string) (Repository, error)
