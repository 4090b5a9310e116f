package generateimage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/catalog"
	"promo-studio-server/modules/common/config"
	"promo-studio-server/modules/common/credit"
	"promo-studio-server/modules/common/events"
	"promo-studio-server/modules/common/gateway"
	"promo-studio-server/modules/common/model"
	"promo-studio-server/modules/common/storage"
	"promo-studio-server/modules/common/utils"
)

// Options - 출력 이미지 저장 설정
type Options struct {
	Bucket      string
	URLTTL      time.Duration
	Format      string
	WebPQuality float32
}

// OptionsFromConfig - Config 에서 Options 생성
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Bucket:      cfg.GeneratedBucket,
		URLTTL:      cfg.GeneratedURLTTL,
		Format:      cfg.GeneratedImageFormat,
		WebPQuality: cfg.WebPQuality,
	}
}

type Service struct {
	repos   RepositoryFactory
	sources storage.Store // 상품 원본 (private bucket, service role)
	store   storage.Store // 생성 결과 저장소
	ai      gateway.Backend
	ledger  *credit.Ledger
	catalog *catalog.Resolver
	events  events.Publisher
	opts    Options
	now     func() time.Time
}

func NewService(
	repos RepositoryFactory,
	sources storage.Store,
	store storage.Store,
	ai gateway.Backend,
	ledger *credit.Ledger,
	resolver *catalog.Resolver,
	publisher events.Publisher,
	opts Options,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repos:   repos,
		sources: sources,
		store:   store,
		ai:      ai,
		ledger:  ledger,
		catalog: resolver,
		events:  publisher,
		opts:    opts,
		now:     time.Now,
	}
}

// Generate - 상품 사진으로 마케팅 이미지 생성 (크레딧 1 소모)
// req 는 handler 에서 ValidateSelection 을 통과한 상태
func (s *Service) Generate(ctx context.Context, userID, token string, req GenerateRequest) (*GenerateResponse, error) {
	log.Info().Str("user_id", userID).Str("credit_mode", s.ledger.Mode()).
		Msgf("🎨 [GenerateImage] Generating image (category: %s, model: %s)", req.CategoryName, req.ModelTypeName)

	repo, err := s.repos(token)
	if err != nil {
		return nil, apperror.Internal("Internal server error", err)
	}

	inputURL := s.inlineSourceImage(ctx, req.ProductImageURL)

	reservation, err := s.ledger.Begin(ctx, repo, userID)
	if err != nil {
		switch {
		case errors.Is(err, credit.ErrInsufficient):
			return nil, apperror.InsufficientCredits()
		case errors.Is(err, credit.ErrContention):
			return nil, apperror.Persistence("Failed to reserve credit", err)
		default:
			return nil, apperror.Persistence("Failed to fetch credits", err)
		}
	}

	committed := false
	defer func() {
		if !committed {
			reservation.Rollback(ctx)
		}
	}()

	prompt := BuildPrompt(req.CategoryName, req.ModelTypeName)
	generated, err := s.ai.GenerateImage(ctx, prompt, inputURL)
	if err != nil {
		if errors.Is(err, gateway.ErrNoImage) {
			return nil, apperror.Upstream("No image generated from AI", err)
		}
		return nil, apperror.Upstream(fmt.Sprintf("AI generation failed: %d", gateway.StatusOf(err)), err)
	}
	log.Info().Str("user_id", userID).Msg("✅ [GenerateImage] Image generated by AI")

	data, mimeType, err := s.encodeOutput(generated)
	if err != nil {
		return nil, apperror.Upstream("No image generated from AI", err)
	}

	objectPath := storage.GeneratedObjectPath(userID, s.now(), utils.ExtensionForMime(mimeType))
	if err := s.store.Upload(ctx, s.opts.Bucket, objectPath, data, mimeType); err != nil {
		log.Error().Err(err).Str("path", objectPath).Msg("❌ [GenerateImage] Storage upload failed")
		return nil, apperror.Storage("Failed to upload generated image", err)
	}

	signedURL, err := s.store.SignedURL(ctx, s.opts.Bucket, objectPath, s.opts.URLTTL)
	if err != nil {
		log.Error().Err(err).Str("path", objectPath).Msg("❌ [GenerateImage] Signed URL failed")
		return nil, apperror.Storage("Failed to create signed URL", err)
	}
	log.Info().Str("path", objectPath).Msg("📤 [GenerateImage] Image uploaded to storage")

	categoryID, modelTypeID := s.catalog.Resolve(ctx, repo, req.CategoryName, req.ModelTypeName)

	record, err := repo.InsertGeneratedImage(ctx, model.GeneratedImage{
		UserID:             userID,
		BusinessCategoryID: categoryID,
		ModelTypeID:        modelTypeID,
		OriginalImageURL:   req.ProductImageURL,
		GeneratedImageURL:  signedURL,
	})
	if err != nil {
		// 업로드된 객체는 남는다 (orphan 허용)
		log.Error().Err(err).Str("path", objectPath).Msg("❌ [GenerateImage] Database insert failed")
		return nil, apperror.Persistence("Failed to save image record", err)
	}

	remaining := reservation.Commit(ctx)
	committed = true

	s.events.Publish(userID, events.TypeImageGenerated, ImageGeneratedPayload{
		ImageID:      record.ID,
		ImageURL:     signedURL,
		CategoryName: req.CategoryName,
	})
	s.events.Publish(userID, events.TypeCreditsUpdated, CreditsPayload{Credits: remaining})

	log.Info().Str("user_id", userID).Msgf("🎉 [GenerateImage] Generation complete (credits remaining: %d)", remaining)

	return &GenerateResponse{
		Success:          true,
		ImageURL:         signedURL,
		CreditsRemaining: remaining,
	}, nil
}

// inlineSourceImage - Supabase 오브젝트 URL 이면 service role 로 받아서 data URI 로 변환
// 실패하면 원래 URL 그대로 사용
func (s *Service) inlineSourceImage(ctx context.Context, productImageURL string) string {
	bucket, objectPath, ok := storage.ParseObjectURL(productImageURL)
	if !ok || s.sources == nil {
		return productImageURL
	}

	data, err := s.sources.Download(ctx, bucket, objectPath)
	if err != nil || len(data) == 0 {
		log.Warn().Err(err).Str("bucket", bucket).Str("path", objectPath).
			Msg("⚠️  [GenerateImage] Could not convert product image to base64, using provided URL")
		return productImageURL
	}

	log.Debug().Str("bucket", bucket).Msgf("📥 [GenerateImage] Inlined product image (%d bytes)", len(data))
	return utils.EncodeDataURI(utils.DetectMimeType(data), data)
}

// encodeOutput - AI 응답 data URI 디코딩 + (설정 시) WebP 변환
func (s *Service) encodeOutput(generated string) ([]byte, string, error) {
	mimeType, data, err := utils.DecodeDataURI(generated)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image payload")
	}
	mimeType, ok := utils.ImageMime(mimeType, data)
	if !ok {
		return nil, "", fmt.Errorf("payload is not an image: %s", utils.DetectMimeType(data))
	}

	if s.opts.Format != config.FormatWebP {
		return data, mimeType, nil
	}

	webpData, err := utils.ConvertToWebP(data, s.opts.WebPQuality)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [GenerateImage] WebP conversion failed, uploading original")
		return data, mimeType, nil
	}
	return webpData, "image/webp", nil
}
