package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/cache"
)

// 모델 타입 선택이 필수인 카테고리
var modelRequiredCategories = map[string]struct{}{
	"Fashion":            {},
	"Jewelry":            {},
	"Sportswear":         {},
	"Beauty & Cosmetics": {},
}

// RequiresModel - 카테고리가 모델 타입을 요구하는지
func RequiresModel(category string) bool {
	_, ok := modelRequiredCategories[strings.TrimSpace(category)]
	return ok
}

// ValidateSelection - 네트워크 호출 전에 수행하는 순수 입력 검증
func ValidateSelection(category, modelType string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return apperror.Validation("categoryName is required")
	}
	if RequiresModel(category) && strings.TrimSpace(modelType) == "" {
		return apperror.Validation(fmt.Sprintf("Model type is required for %s", category))
	}
	return nil
}

// Lookup - 이름으로 참조 데이터 id 조회 (database.Client 가 구현)
type Lookup interface {
	FindCategoryID(ctx context.Context, name string) (*string, error)
	FindModelTypeID(ctx context.Context, name string) (*string, error)
}

// Resolver - 카테고리/모델 타입 id 조회 + 캐시
type Resolver struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewResolver(c cache.Cache, ttl time.Duration) *Resolver {
	if c == nil {
		c = cache.Noop{}
	}
	return &Resolver{cache: c, ttl: ttl}
}

// Resolve - best-effort 조회, 실패하거나 없으면 nil (FK 는 null 로 저장)
func (r *Resolver) Resolve(ctx context.Context, lookup Lookup, category, modelType string) (categoryID, modelTypeID *string) {
	categoryID = r.resolveOne(ctx, "category", category, lookup.FindCategoryID)
	modelTypeID = r.resolveOne(ctx, "model_type", modelType, lookup.FindModelTypeID)
	return categoryID, modelTypeID
}

func (r *Resolver) resolveOne(ctx context.Context, kind, name string, find func(context.Context, string) (*string, error)) *string {
	if name == "" {
		return nil
	}

	key := "catalog:" + kind + ":" + name
	if cached, ok := r.cache.Get(ctx, key); ok {
		return &cached
	}

	id, err := find(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str(kind, name).Msg("⚠️  [Catalog] Lookup failed, storing null reference")
		return nil
	}
	if id == nil {
		log.Warn().Str(kind, name).Msg("⚠️  [Catalog] Unknown name, storing null reference")
		return nil
	}

	r.cache.Set(ctx, key, *id, r.ttl)
	return id
}
