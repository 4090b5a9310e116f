package socialcaption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/config"
	"promo-studio-server/modules/common/events"
	"promo-studio-server/modules/common/fallback"
	"promo-studio-server/modules/common/gateway"
	"promo-studio-server/modules/common/model"
	"promo-studio-server/modules/common/storage"
)

// Options - 캡션 생성 설정
type Options struct {
	Bucket      string
	URLTTL      time.Duration
	Concurrency int
	// social_media_captions.image_url 컬럼 사용 여부 (시작 시 한 번 결정)
	SupportsImageURLColumn bool
}

type Service struct {
	repo   Repository
	store  storage.Store
	ai     gateway.Backend
	events events.Publisher
	opts   Options
}

func NewService(repo Repository, store storage.Store, ai gateway.Backend, publisher events.Publisher, opts Options) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Service{repo: repo, store: store, ai: ai, events: publisher, opts: opts}
}

// ResolveImageURLSupport - CAPTIONS_IMAGE_URL_COLUMN 강제값 또는 스키마 확인 결과
// 확인 실패 시 false (컬럼 없이 저장하면 항상 성공)
func ResolveImageURLSupport(ctx context.Context, cfg *config.Config, checker ColumnChecker) bool {
	if value, forced := cfg.ImageURLColumnOverride(); forced {
		log.Info().Msgf("🔧 [SocialCaption] image_url column support forced to %v", value)
		return value
	}

	supported, err := checker.CheckCaptionImageURLColumn(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [SocialCaption] image_url column check failed, saving captions without it")
		return false
	}
	log.Info().Msgf("🔍 [SocialCaption] image_url column supported: %v", supported)
	return supported
}

// Generate - 선택한 이미지마다 캡션 + 해시태그 생성
// 개별 실패는 대체 결과로 바뀌고, 전부 실패할 때만 에러
func (s *Service) Generate(ctx context.Context, userID string, imageIDs []string) ([]CaptionResult, error) {
	images, err := s.repo.FetchImagesByIDs(ctx, userID, imageIDs)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("❌ [SocialCaption] Error fetching images")
		return nil, apperror.Persistence("Failed to fetch images", err)
	}
	if len(images) == 0 {
		log.Error().Str("user_id", userID).Msg("❌ [SocialCaption] No owned images matched the request")
		return nil, apperror.Persistence("Failed to fetch images", errors.New("no images found"))
	}
	images = orderByRequest(images, imageIDs)

	log.Info().Str("user_id", userID).Msgf("📝 [SocialCaption] Generating captions for %d images (concurrency: %d)",
		len(images), s.opts.Concurrency)

	results := make([]CaptionResult, len(images))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for i, img := range images {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("image_id", img.ID).Msgf("💥 [SocialCaption] Task panicked: %v", r)
					results[i] = taskFallback(img)
				}
			}()

			result, err := s.processImage(ctx, userID, img)
			if err != nil {
				log.Error().Err(err).Str("image_id", img.ID).Msg("❌ [SocialCaption] Error processing image")
				result = itemFallback(img)
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]CaptionResult, 0, len(results))
	for _, r := range results {
		if r.Caption != "" && r.ImageURL != "" {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil, apperror.Internal("Failed to generate any captions. Please try again.", nil)
	}

	log.Info().Str("user_id", userID).Msgf("✅ [SocialCaption] Generated %d/%d captions", len(valid), len(images))
	return valid, nil
}

// processImage - 서명 → AI 호출 → 파싱 → 저장
func (s *Service) processImage(ctx context.Context, userID string, img model.CaptionSourceImage) (CaptionResult, error) {
	if err := ctx.Err(); err != nil {
		return CaptionResult{}, err
	}
	if img.GeneratedImageURL == "" {
		return CaptionResult{}, fmt.Errorf("image %s has no stored URL", img.ID)
	}

	imageURL, err := storage.ResolveStoredURL(ctx, s.store, s.opts.Bucket, img.GeneratedImageURL, s.opts.URLTTL)
	if err != nil {
		log.Warn().Err(err).Str("image_id", img.ID).Msg("⚠️  [SocialCaption] Error creating signed URL, using stored value")
	}

	caption, hashtags := s.describe(ctx, img, imageURL)
	joined := model.JoinHashtags(hashtags)

	result := CaptionResult{
		ImageURL:  imageURL,
		Caption:   caption,
		Hashtags:  model.SplitHashtags(joined),
		CaptionID: s.persist(ctx, userID, img.ID, imageURL, caption, joined),
	}

	s.events.Publish(userID, events.TypeCaptionGenerated, CaptionGeneratedPayload{ImageID: img.ID, Result: result})
	return result, nil
}

// describe - AI 응답을 캡션으로 변환, 어떤 실패도 기본 캡션으로 대체
func (s *Service) describe(ctx context.Context, img model.CaptionSourceImage, imageURL string) (string, []string) {
	text, err := s.ai.DescribeImage(ctx, BuildCaptionPrompt(img.CategoryName()), imageURL)
	if err != nil {
		log.Error().Err(err).Str("image_id", img.ID).Msg("❌ [SocialCaption] Error generating caption for image")
		return fallback.GenericCaption, fallback.GenericHashtagList()
	}

	parsed, err := ParseCaptionResponse(text)
	switch {
	case err == nil:
		return parsed.Caption, parsed.Hashtags
	case errors.Is(err, ErrNoJSONObject):
		return fallback.FirstLine(text, fallback.GenericCaption), fallback.GenericHashtagList()
	default:
		log.Error().Err(err).Str("image_id", img.ID).Str("response", gateway.Truncate(text, 300)).
			Msg("🚨 [SocialCaption] AI response schema mismatch")
		return fallback.GenericCaption, fallback.GenericHashtagList()
	}
}

// persist - social_media_captions 저장, 실패는 로그만 남기고 nil
func (s *Service) persist(ctx context.Context, userID, imageID, imageURL, caption, hashtags string) *string {
	rec := model.SocialMediaCaption{
		UserID:   userID,
		Caption:  caption,
		Hashtags: hashtags,
		ImageIDs: []string{imageID},
	}
	if s.opts.SupportsImageURLColumn {
		rec.ImageURL = &imageURL
	}

	saved, err := s.repo.InsertCaption(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("image_id", imageID).Msg("❌ [SocialCaption] Error saving caption to database")
		return nil
	}
	if saved == nil || saved.ID == "" {
		return nil
	}
	id := saved.ID
	return &id
}

// orderByRequest - DB 결과를 요청 id 순서로 정렬 (중복 id 는 한 번만)
func orderByRequest(images []model.CaptionSourceImage, ids []string) []model.CaptionSourceImage {
	byID := make(map[string]model.CaptionSourceImage, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	ordered := make([]model.CaptionSourceImage, 0, len(images))
	for _, id := range ids {
		if img, ok := byID[id]; ok {
			ordered = append(ordered, img)
			delete(byID, id)
		}
	}
	// 요청에 없는 id 가 섞여 오면 뒤에 붙인다
	for _, img := range images {
		if _, ok := byID[img.ID]; ok {
			ordered = append(ordered, img)
			delete(byID, img.ID)
		}
	}
	return ordered
}

func itemFallback(img model.CaptionSourceImage) CaptionResult {
	return CaptionResult{
		ImageURL: img.GeneratedImageURL,
		Caption:  fallback.ItemErrorCaption,
		Hashtags: fallback.ItemErrorHashtags(),
	}
}

func taskFallback(img model.CaptionSourceImage) CaptionResult {
	return CaptionResult{
		ImageURL: img.GeneratedImageURL,
		Caption:  fallback.TaskErrorCaption,
		Hashtags: fallback.TaskErrorHashtags(),
	}
}
