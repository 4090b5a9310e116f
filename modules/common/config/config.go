package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"

	StorageSupabase = "supabase"
	StorageMinio    = "minio"

	CreditModeReserve  = "reserve"
	CreditModeDeferred = "deferred"

	FormatPNG  = "png"
	FormatWebP = "webp"

	ColumnAuto = "auto"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port      string
	LogLevel  string
	LogFormat string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// AI
	AIProvider       string
	AIGatewayURL     string
	AIGatewayAPIKey  string
	ImageModel       string
	CaptionModel     string
	GeminiAPIKey     string
	GeminiImageModel string
	GeminiTextModel  string
	AITimeout        time.Duration
	AIRetryAttempts  int

	// Storage
	StorageBackend  string
	GeneratedBucket string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioUseSSL     bool
	GeneratedURLTTL time.Duration
	CaptionURLTTL   time.Duration

	// Image
	GeneratedImageFormat string
	WebPQuality          float32

	// Credit
	CreditDebitMode string

	// Caption
	CaptionConcurrency     int
	CaptionsImageURLColumn string

	// Redis (REDIS_HOST 가 비어있으면 캐시 비활성화)
	RedisHost         string
	RedisPort         string
	RedisUsername     string
	RedisPassword     string
	RedisUseTLS       bool
	SignedURLCacheTTL time.Duration
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		// Server
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Supabase
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		// AI
		AIProvider:       strings.ToLower(getEnv("AI_PROVIDER", ProviderGateway)),
		AIGatewayURL:     getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		AIGatewayAPIKey:  getEnv("AI_GATEWAY_API_KEY", os.Getenv("LOVABLE_API_KEY")),
		ImageModel:       getEnv("IMAGE_MODEL", "google/gemini-2.5-flash-image-preview"),
		CaptionModel:     getEnv("CAPTION_MODEL", "google/gemini-2.5-flash"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		AITimeout:        getDuration("AI_TIMEOUT", 120*time.Second),
		AIRetryAttempts:  getInt("AI_RETRY_ATTEMPTS", 3),

		// Storage
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageSupabase)),
		GeneratedBucket: getEnv("GENERATED_BUCKET", "generated-images"),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:     getBool("MINIO_USE_SSL", true),
		GeneratedURLTTL: getDuration("GENERATED_URL_TTL", 7*24*time.Hour),
		CaptionURLTTL:   getDuration("CAPTION_URL_TTL", time.Hour),

		// Image
		GeneratedImageFormat: strings.ToLower(getEnv("GENERATED_IMAGE_FORMAT", FormatPNG)),
		WebPQuality:          float32(getInt("WEBP_QUALITY", 90)),

		// Credit
		CreditDebitMode: strings.ToLower(getEnv("CREDIT_DEBIT_MODE", CreditModeReserve)),

		// Caption
		CaptionConcurrency:     getInt("CAPTION_CONCURRENCY", 4),
		CaptionsImageURLColumn: strings.ToLower(getEnv("CAPTIONS_IMAGE_URL_COLUMN", ColumnAuto)),

		// Redis
		RedisHost:         getEnv("REDIS_HOST", ""),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisUsername:     getEnv("REDIS_USERNAME", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:       getBool("REDIS_USE_TLS", false),
		SignedURLCacheTTL: getDuration("SIGNED_URL_CACHE_TTL", 50*time.Minute),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().Msg("✅ Configuration loaded successfully")
	log.Info().Msgf("   Supabase: %s", cfg.SupabaseURL)
	log.Info().Msgf("   AI: %s (image: %s, caption: %s)", cfg.AIProvider, cfg.ActiveImageModel(), cfg.ActiveCaptionModel())
	log.Info().Msgf("   Storage: %s (bucket: %s, format: %s)", cfg.StorageBackend, cfg.GeneratedBucket, cfg.GeneratedImageFormat)
	log.Info().Msgf("   Credit mode: %s", cfg.CreditDebitMode)
	if cfg.RedisEnabled() {
		log.Info().Msgf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	} else {
		log.Info().Msg("   Redis: disabled")
	}

	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseAnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}

	switch c.AIProvider {
	case ProviderGateway:
		if c.AIGatewayAPIKey == "" {
			return fmt.Errorf("AI_GATEWAY_API_KEY (or LOVABLE_API_KEY) is required")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unsupported AI_PROVIDER: %s", c.AIProvider)
	}

	switch c.StorageBackend {
	case StorageSupabase:
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for minio storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %s", c.StorageBackend)
	}

	if c.GeneratedImageFormat != FormatPNG && c.GeneratedImageFormat != FormatWebP {
		return fmt.Errorf("unsupported GENERATED_IMAGE_FORMAT: %s", c.GeneratedImageFormat)
	}
	if c.CreditDebitMode != CreditModeReserve && c.CreditDebitMode != CreditModeDeferred {
		return fmt.Errorf("unsupported CREDIT_DEBIT_MODE: %s", c.CreditDebitMode)
	}
	if c.AIRetryAttempts < 1 {
		return fmt.Errorf("AI_RETRY_ATTEMPTS must be at least 1")
	}
	if c.CaptionConcurrency < 1 {
		return fmt.Errorf("CAPTION_CONCURRENCY must be at least 1")
	}
	switch c.CaptionsImageURLColumn {
	case ColumnAuto, "true", "false":
	default:
		return fmt.Errorf("CAPTIONS_IMAGE_URL_COLUMN must be auto, true or false")
	}
	return nil
}

// ActiveImageModel - 선택된 provider 의 이미지 모델명
func (c *Config) ActiveImageModel() string {
	if c.AIProvider == ProviderGemini {
		return c.GeminiImageModel
	}
	return c.ImageModel
}

// ActiveCaptionModel - 선택된 provider 의 캡션 모델명
func (c *Config) ActiveCaptionModel() string {
	if c.AIProvider == ProviderGemini {
		return c.GeminiTextModel
	}
	return c.CaptionModel
}

// ImageURLColumnOverride - CAPTIONS_IMAGE_URL_COLUMN 이 auto 가 아니면 강제값 반환
func (c *Config) ImageURLColumnOverride() (value bool, forced bool) {
	switch c.CaptionsImageURLColumn {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// RedisEnabled - Redis 캐시 사용 여부
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid %s=%q, using default %d", key, raw, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid %s=%q, using default %v", key, raw, defaultValue)
	}
	return defaultValue
}

// getDuration - "90s", "1h" 형식 또는 초 단위 정수 모두 허용
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	log.Warn().Msgf("⚠️  Invalid %s=%q, using default %s", key, raw, defaultValue)
	return defaultValue
}
