package gallery

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/auth"
	"promo-studio-server/modules/common/catalog"
	"promo-studio-server/modules/common/database"
	"promo-studio-server/modules/common/model"
	"promo-studio-server/modules/common/response"
	"promo-studio-server/modules/common/storage"
	socialcaption "promo-studio-server/modules/social-caption"
)

type Handler struct {
	repo     Repository
	store    storage.Store
	verifier auth.Verifier
	bucket   string
	urlTTL   time.Duration
}

func NewHandler(repo Repository, store storage.Store, verifier auth.Verifier, bucket string, urlTTL time.Duration) *Handler {
	return &Handler{repo: repo, store: store, verifier: verifier, bucket: bucket, urlTTL: urlTTL}
}

// Register - /api 하위 조회 라우트 등록
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/credits", h.Credits).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/catalog", h.Catalog).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/images", h.Images).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/captions", h.Captions).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/captions/recover", h.RecoverCaptions).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/captions/{id}", h.DeleteCaption).Methods(http.MethodDelete, http.MethodOptions)
}

// authenticate - Bearer 토큰을 GoTrue 로 검증
func (h *Handler) authenticate(r *http.Request) (string, error) {
	token := auth.ParseBearer(r.Header.Get("Authorization"))
	if token == "" {
		return "", apperror.Unauthorized("Unauthorized")
	}
	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		return "", apperror.Unauthorized("Unauthorized")
	}
	return userID, nil
}

// Credits - GET /api/credits
func (h *Handler) Credits(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}
	userID, err := h.authenticate(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	credits, err := h.repo.GetCredits(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("❌ [Gallery] Failed to fetch credits")
		response.Error(w, apperror.Persistence("Failed to fetch credits", err))
		return
	}
	response.JSON(w, http.StatusOK, CreditsResponse{Credits: credits})
}

// Catalog - GET /api/catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}
	if _, err := h.authenticate(r); err != nil {
		response.Error(w, err)
		return
	}

	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		response.Error(w, apperror.Persistence("Failed to fetch catalog", err))
		return
	}
	modelTypes, err := h.repo.ListModelTypes(r.Context())
	if err != nil {
		response.Error(w, apperror.Persistence("Failed to fetch catalog", err))
		return
	}

	views := make([]CategoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, CategoryView{ID: c.ID, Name: c.Name, RequiresModel: catalog.RequiresModel(c.Name)})
	}
	if modelTypes == nil {
		modelTypes = []model.ModelType{}
	}
	response.JSON(w, http.StatusOK, CatalogResponse{Categories: views, ModelTypes: modelTypes})
}

// Images - GET /api/images?limit=N
func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}
	userID, err := h.authenticate(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	images, err := h.repo.ListGeneratedImages(r.Context(), userID, parseLimit(r))
	if err != nil {
		response.Error(w, apperror.Persistence("Failed to fetch images", err))
		return
	}
	for i := range images {
		images[i].GeneratedImageURL = h.resolve(r.Context(), images[i].GeneratedImageURL)
	}
	if images == nil {
		images = []model.GeneratedImage{}
	}
	response.JSON(w, http.StatusOK, ImagesResponse{Images: images})
}

// Captions - GET /api/captions?limit=N
func (h *Handler) Captions(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}
	userID, err := h.authenticate(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	rows, err := h.repo.ListCaptions(r.Context(), userID, parseLimit(r))
	if err != nil {
		response.Error(w, apperror.Persistence("Failed to fetch captions", err))
		return
	}

	views := make([]CaptionView, 0, len(rows))
	for _, row := range rows {
		if row.ImageURL != nil {
			resolved := h.resolve(r.Context(), *row.ImageURL)
			row.ImageURL = &resolved
		}
		views = append(views, CaptionView{
			ID:        row.ID,
			Caption:   row.Caption,
			Hashtags:  model.SplitHashtags(row.Hashtags),
			ImageIDs:  row.ImageIDs,
			ImageURL:  row.ImageURL,
			CreatedAt: row.CreatedAt,
		})
	}
	response.JSON(w, http.StatusOK, CaptionsResponse{Captions: views})
}

// RecoverCaptions - GET /api/captions/recover?imageIds=a,b
// 캡션 생성 응답을 놓친 경우 최근 저장된 캡션에서 복구
func (h *Handler) RecoverCaptions(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}
	userID, err := h.authenticate(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	wanted := parseIDs(r.URL.Query().Get("imageIds"))
	if len(wanted) == 0 {
		response.Error(w, apperror.Validation("No images selected"))
		return
	}

	rows, err := h.repo.ListCaptions(r.Context(), userID, recoverScanLimit)
	if err != nil {
		response.Error(w, apperror.Persistence("Failed to fetch captions", err))
		return
	}

	recovered := make([]socialcaption.CaptionResult, 0)
	for _, row := range rows {
		if !referencesAny(row.ImageIDs, wanted) {
			continue
		}

		stored := ""
		if row.ImageURL != nil {
			stored = *row.ImageURL
		}
		if stored == "" && len(row.ImageIDs) > 0 {
			stored, err = h.repo.FindImageURL(r.Context(), userID, row.ImageIDs[0])
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				log.Warn().Err(err).Str("caption_id", row.ID).Msg("⚠️  [Gallery] Could not resolve caption image")
			}
		}
		imageURL := h.resolve(r.Context(), stored)

		id := row.ID
		recovered = append(recovered, socialcaption.CaptionResult{
			ImageURL:  imageURL,
			Caption:   row.Caption,
			Hashtags:  model.SplitHashtags(row.Hashtags),
			CaptionID: &id,
		})
	}

	log.Info().Str("user_id", userID).Msgf("🔎 [Gallery] Recovered %d captions", len(recovered))
	response.JSON(w, http.StatusOK, socialcaption.CaptionResponse{Captions: recovered})
}

// DeleteCaption - DELETE /api/captions/{id}
func (h *Handler) DeleteCaption(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}
	userID, err := h.authenticate(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	captionID := mux.Vars(r)["id"]
	if err := h.repo.DeleteCaption(r.Context(), userID, captionID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.Error(w, apperror.NotFound("Caption not found"))
			return
		}
		response.Error(w, apperror.Persistence("Failed to delete caption", err))
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// resolve - 서명 URL 이나 저장 경로면 재서명, 실패하면 저장값 그대로
func (h *Handler) resolve(ctx context.Context, stored string) string {
	resolved, err := storage.RefreshStoredURL(ctx, h.store, h.bucket, stored, h.urlTTL)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [Gallery] Re-signing failed, returning stored value")
	}
	return resolved
}

func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func parseIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func referencesAny(imageIDs, wanted []string) bool {
	for _, id := range imageIDs {
		for _, w := range wanted {
			if id == w {
				return true
			}
		}
	}
	return false
}
