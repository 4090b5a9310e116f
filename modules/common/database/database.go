package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"promo-studio-server/modules/common/config"
	"promo-studio-server/modules/common/model"
)

const (
	TableUserCredits        = "user_credits"
	TableBusinessCategories = "business_categories"
	TableModelTypes         = "model_types"
	TableGeneratedImages    = "generated_images"
	TableCaptions           = "social_media_captions"
)

var ErrNotFound = errors.New("record not found")

// Connector - 요청마다 Supabase 클라이언트를 만들어 주는 팩토리
type Connector struct {
	url        string
	anonKey    string
	serviceKey string
}

// NewConnector - Connector 생성
func NewConnector(cfg *config.Config) *Connector {
	return &Connector{
		url:        cfg.SupabaseURL,
		anonKey:    cfg.SupabaseAnonKey,
		serviceKey: cfg.SupabaseServiceKey,
	}
}

// Service - service role 키로 동작하는 클라이언트 (RLS 우회)
func (c *Connector) Service() (*Client, error) {
	sb, err := supabase.NewClient(c.url, c.serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Client{supabase: sb}, nil
}

// ForUser - anon 키 + 사용자 토큰으로 동작하는 클라이언트 (RLS 적용)
func (c *Connector) ForUser(token string) (*Client, error) {
	sb, err := supabase.NewClient(c.url, c.anonKey, &supabase.ClientOptions{
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Client{supabase: sb}, nil
}

type Client struct {
	supabase *supabase.Client
}

// GetCredits - 사용자 크레딧 조회
func (c *Client) GetCredits(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var rows []model.UserCredits
	data, _, err := c.supabase.From(TableUserCredits).
		Select("credits", "", false).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to query user_credits: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse user_credits: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("credits for user %s: %w", userID, ErrNotFound)
	}
	return rows[0].Credits, nil
}

// CompareAndSetCredits - credits 가 expected 일 때만 next 로 갱신
// 다른 요청이 먼저 바꿨으면 (false, nil)
func (c *Client) CompareAndSetCredits(ctx context.Context, userID string, expected, next int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var rows []model.UserCredits
	data, _, err := c.supabase.From(TableUserCredits).
		Update(map[string]interface{}{"credits": next}, "representation", "").
		Eq("user_id", userID).
		Eq("credits", strconv.Itoa(expected)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to update user_credits: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("failed to parse user_credits: %w", err)
	}
	return len(rows) > 0, nil
}

// SetCredits - 조건 없이 크레딧 갱신
func (c *Client) SetCredits(ctx context.Context, userID string, credits int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := c.supabase.From(TableUserCredits).
		Update(map[string]interface{}{"credits": credits}, "minimal", "").
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update user_credits: %w", err)
	}
	return nil
}

// FindCategoryID - 이름으로 business_categories.id 조회 (없으면 nil)
func (c *Client) FindCategoryID(ctx context.Context, name string) (*string, error) {
	return c.findIDByName(ctx, TableBusinessCategories, name)
}

// FindModelTypeID - 이름으로 model_types.id 조회 (없으면 nil)
func (c *Client) FindModelTypeID(ctx context.Context, name string) (*string, error) {
	return c.findIDByName(ctx, TableModelTypes, name)
}

func (c *Client) findIDByName(ctx context.Context, table, name string) (*string, error) {
	if name == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []struct {
		ID string `json:"id"`
	}
	data, _, err := c.supabase.From(table).
		Select("id", "", false).
		Eq("name", name).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].ID, nil
}

// ListCategories - 전체 카테고리 (이름순)
func (c *Client) ListCategories(ctx context.Context) ([]model.BusinessCategory, error) {
	var rows []model.BusinessCategory
	if err := c.listByName(ctx, TableBusinessCategories, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListModelTypes - 전체 모델 타입 (이름순)
func (c *Client) ListModelTypes(ctx context.Context) ([]model.ModelType, error) {
	var rows []model.ModelType
	if err := c.listByName(ctx, TableModelTypes, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) listByName(ctx context.Context, table string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, _, err := c.supabase.From(table).
		Select("id, name", "", false).
		Order("name", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", table, err)
	}
	return nil
}

// InsertGeneratedImage - generated_images 레코드 생성
func (c *Client) InsertGeneratedImage(ctx context.Context, img model.GeneratedImage) (*model.GeneratedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Debug().Str("user_id", img.UserID).Msg("💾 [Database] Inserting generated image")

	var rows []model.GeneratedImage
	data, _, err := c.supabase.From(TableGeneratedImages).
		Insert(img, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert generated_images: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse generated_images: %w", err)
	}
	if len(rows) == 0 {
		return &img, nil
	}
	return &rows[0], nil
}

// ListGeneratedImages - 사용자의 생성 이미지 (최신순)
func (c *Client) ListGeneratedImages(ctx context.Context, userID string, limit int) ([]model.GeneratedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.GeneratedImage
	data, _, err := c.supabase.From(TableGeneratedImages).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query generated_images: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse generated_images: %w", err)
	}
	return rows, nil
}

// FetchImagesByIDs - 사용자 소유 이미지만 조회 (카테고리 이름 조인)
func (c *Client) FetchImagesByIDs(ctx context.Context, userID string, ids []string) ([]model.CaptionSourceImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.CaptionSourceImage
	data, _, err := c.supabase.From(TableGeneratedImages).
		Select("id, generated_image_url, business_category_id, business_categories(name)", "", false).
		In("id", ids).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query generated_images: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse generated_images: %w", err)
	}
	return rows, nil
}

// FindImageURL - 사용자 소유 이미지의 generated_image_url
func (c *Client) FindImageURL(ctx context.Context, userID, imageID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var rows []struct {
		GeneratedImageURL string `json:"generated_image_url"`
	}
	data, _, err := c.supabase.From(TableGeneratedImages).
		Select("generated_image_url", "", false).
		Eq("id", imageID).
		Eq("user_id", userID).
		Limit(1, "").
		Execute()
	if err != nil {
		return "", fmt.Errorf("failed to query generated_images: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("failed to parse generated_images: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("image %s: %w", imageID, ErrNotFound)
	}
	return rows[0].GeneratedImageURL, nil
}

// InsertCaption - social_media_captions 레코드 생성
// ImageURL 이 nil 이면 image_url 컬럼은 요청 본문에서 빠진다
func (c *Client) InsertCaption(ctx context.Context, rec model.SocialMediaCaption) (*model.SocialMediaCaption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.SocialMediaCaption
	data, _, err := c.supabase.From(TableCaptions).
		Insert(rec, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert social_media_captions: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse social_media_captions: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no caption record returned")
	}
	return &rows[0], nil
}

// ListCaptions - 사용자의 캡션 (최신순)
func (c *Client) ListCaptions(ctx context.Context, userID string, limit int) ([]model.SocialMediaCaption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.SocialMediaCaption
	data, _, err := c.supabase.From(TableCaptions).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query social_media_captions: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse social_media_captions: %w", err)
	}
	return rows, nil
}

// DeleteCaption - 사용자 소유 캡션 삭제 (없으면 ErrNotFound)
func (c *Client) DeleteCaption(ctx context.Context, userID, captionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var rows []struct {
		ID string `json:"id"`
	}
	data, _, err := c.supabase.From(TableCaptions).
		Delete("representation", "").
		Eq("id", captionID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete social_media_captions: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse social_media_captions: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("caption %s: %w", captionID, ErrNotFound)
	}
	log.Info().Str("caption_id", captionID).Msg("🗑️  [Database] Deleted caption")
	return nil
}

// CheckCaptionImageURLColumn - social_media_captions.image_url 컬럼 존재 여부 확인
func (c *Client) CheckCaptionImageURLColumn(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, _, err := c.supabase.From(TableCaptions).
		Select("image_url", "", false).
		Limit(1, "").
		Execute()
	if err == nil {
		return true, nil
	}
	if IsUndefinedColumn(err, "image_url") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check social_media_captions: %w", err)
}

// IsUndefinedColumn - "(42703) column ... does not exist" 또는 schema cache 누락 에러 판별
func IsUndefinedColumn(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "42703") || strings.Contains(msg, "PGRST204") {
		return true
	}
	return strings.Contains(msg, column) && strings.Contains(msg, "column")
}
