package socialcaption

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/auth"
	"promo-studio-server/modules/common/response"
)

type SocialCaptionHandler struct {
	service  *Service
	verifier auth.Verifier
}

func NewSocialCaptionHandler(service *Service, verifier auth.Verifier) *SocialCaptionHandler {
	return &SocialCaptionHandler{service: service, verifier: verifier}
}

// GenerateCaptions - POST /functions/v1/generate-social-caption
func (h *SocialCaptionHandler) GenerateCaptions(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}

	var req CaptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apperror.Validation("Invalid request body"))
		return
	}
	ids := compactIDs(req.ImageIDs)
	if len(ids) == 0 {
		response.Error(w, apperror.Validation("No images selected"))
		return
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		response.Error(w, apperror.Unauthorized("No authorization header"))
		return
	}

	userID, err := h.verifier.Verify(r.Context(), strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [SocialCaption] User lookup failed")
		response.Error(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	captions, err := h.service.Generate(r.Context(), userID, ids)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("❌ [SocialCaption] Error in generate-social-caption")
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusOK, CaptionResponse{Captions: captions})
}

// compactIDs - 빈 값 제거
func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
