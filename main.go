package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/auth"
	"promo-studio-server/modules/common/cache"
	"promo-studio-server/modules/common/catalog"
	"promo-studio-server/modules/common/config"
	"promo-studio-server/modules/common/credit"
	"promo-studio-server/modules/common/database"
	"promo-studio-server/modules/common/events"
	"promo-studio-server/modules/common/gateway"
	"promo-studio-server/modules/common/logger"
	"promo-studio-server/modules/common/redis"
	"promo-studio-server/modules/common/response"
	"promo-studio-server/modules/common/storage"
	"promo-studio-server/modules/gallery"
	generateimage "promo-studio-server/modules/generate-image"
	socialcaption "promo-studio-server/modules/social-caption"
)

const (
	catalogCacheTTL = 10 * time.Minute
	shutdownTimeout = 30 * time.Second
)

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "promo-studio-server",
	})
}

func main() {
	bootLevel := os.Getenv("LOG_LEVEL")
	if bootLevel == "" {
		bootLevel = "info"
	}
	logger.Init(bootLevel, os.Getenv("LOG_FORMAT"))

	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis (선택)
	rdb, err := redis.Connect(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  Redis unavailable, continuing without cache")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}
	kv := cache.New(rdb)

	// Supabase
	connector := database.NewConnector(cfg)
	serviceDB, err := connector.Service()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create Supabase service client")
	}

	// 상품 원본은 항상 Supabase Storage, 생성 결과는 STORAGE_BACKEND
	sources := storage.WithSignedURLCache(storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey), kv, cfg.SignedURLCacheTTL)
	outputs := sources
	if cfg.StorageBackend == config.StorageMinio {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to create MinIO client")
		}
		if err := minioStore.EnsureBucket(ctx, cfg.GeneratedBucket); err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to prepare MinIO bucket")
		}
		outputs = storage.WithSignedURLCache(minioStore, kv, cfg.SignedURLCacheTTL)
	}

	// AI
	ai, err := gateway.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create AI client")
	}
	if closer, ok := ai.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// 인증 / 이벤트
	decoder := auth.NewDecoder(cfg.SupabaseJWTSecret)
	verifier := auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	hub := events.NewHub(verifier)

	// Generate Image 모듈 초기화
	imageRepos := func(token string) (generateimage.Repository, error) {
		client, err := connector.ForUser(token)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	imageService := generateimage.NewService(
		imageRepos,
		sources,
		outputs,
		ai,
		credit.NewLedger(cfg.CreditDebitMode),
		catalog.NewResolver(kv, catalogCacheTTL),
		hub,
		generateimage.OptionsFromConfig(cfg),
	)
	imageHandler := generateimage.NewGenerateImageHandler(imageService, decoder)

	// Social Caption 모듈 초기화
	captionService := socialcaption.NewService(serviceDB, outputs, ai, hub, socialcaption.Options{
		Bucket:                 cfg.GeneratedBucket,
		URLTTL:                 cfg.CaptionURLTTL,
		Concurrency:            cfg.CaptionConcurrency,
		SupportsImageURLColumn: socialcaption.ResolveImageURLSupport(ctx, cfg, serviceDB),
	})
	captionHandler := socialcaption.NewSocialCaptionHandler(captionService, verifier)

	galleryHandler := gallery.NewHandler(serviceDB, outputs, verifier, cfg.GeneratedBucket, cfg.CaptionURLTTL)

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(response.CORS)

	r.HandleFunc("/", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ws", hub.ServeWS)
	r.HandleFunc("/metrics", hub.MetricsHandler).Methods(http.MethodGet)

	// 기존 Edge Function 경로와 /api 경로 모두 지원
	for _, path := range []string{"/functions/v1/generate-marketing-image", "/api/generate-marketing-image"} {
		r.HandleFunc(path, imageHandler.GenerateImage).Methods(http.MethodPost, http.MethodOptions)
	}
	for _, path := range []string{"/functions/v1/generate-social-caption", "/api/generate-social-caption"} {
		r.HandleFunc(path, captionHandler.GenerateCaptions).Methods(http.MethodPost, http.MethodOptions)
	}
	galleryHandler.Register(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("🚀 Promo Studio Server starting on port %s", cfg.Port)
		log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ Graceful shutdown failed")
	}
	log.Info().Msg("👋 Server stopped")
}
