package generateimage

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/auth"
	"promo-studio-server/modules/common/catalog"
	"promo-studio-server/modules/common/response"
)

type GenerateImageHandler struct {
	service *Service
	decoder *auth.Decoder
}

func NewGenerateImageHandler(service *Service, decoder *auth.Decoder) *GenerateImageHandler {
	return &GenerateImageHandler{service: service, decoder: decoder}
}

// GenerateImage - POST /functions/v1/generate-marketing-image
func (h *GenerateImageHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if response.HandlePreflight(w, r) {
		return
	}

	token := auth.ParseBearer(r.Header.Get("Authorization"))
	if token == "" {
		response.Error(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	userID, err := h.decoder.Subject(token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSubject) {
			response.Error(w, apperror.Unauthorized("Unauthorized"))
		} else {
			response.Error(w, apperror.Unauthorized("Invalid token"))
		}
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apperror.Validation("Invalid request body"))
		return
	}
	if req.ProductImageURL == "" {
		response.Error(w, apperror.Validation("productImageUrl is required"))
		return
	}
	if err := catalog.ValidateSelection(req.CategoryName, req.ModelTypeName); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.service.Generate(r.Context(), userID, token, req)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("❌ [GenerateImage] Error in generate-marketing-image")
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}
