package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
)

const allowHeaders = "authorization, x-client-info, apikey, content-type"

// SetCORSHeaders - CORS 헤더 설정
func SetCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
}

// HandlePreflight - OPTIONS 요청이면 빈 200 응답 후 true
func HandlePreflight(w http.ResponseWriter, r *http.Request) bool {
	SetCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

// CORS - 라우터 전체에 적용하는 미들웨어
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if HandlePreflight(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JSON - JSON 응답 전송
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("❌ Failed to encode JSON response")
	}
}

// Error - { "error": message } 형태로 에러 응답
func Error(w http.ResponseWriter, err error) {
	status, message := apperror.StatusAndMessage(err)
	JSON(w, status, map[string]string{"error": message})
}
