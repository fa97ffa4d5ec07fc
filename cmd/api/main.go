package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"doctrans/internal/app"
	"doctrans/internal/config"
	"doctrans/internal/pipeline"
	"doctrans/internal/server"
	"doctrans/internal/storage"
	"doctrans/internal/store"
	"doctrans/internal/translate"
	"doctrans/internal/usertoken"
	"doctrans/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	tokenTTL := usertoken.DefaultTTL
	if cfg.JWTTTL != "" {
		ttl, err := time.ParseDuration(cfg.JWTTTL)
		if err != nil {
			log.Fatalf("failed to parse jwtTTL: %v", err)
		}
		tokenTTL = ttl
	}
	tokens, err := usertoken.New(usertoken.Options{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    tokenTTL,
	})
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	gateway := newGateway(cfg)
	runner := pipeline.New(blobs, gateway)
	application := app.New(st, blobs, runner, tokens)

	httpServer, err := server.New(server.Config{
		App:                application,
		Tokens:             tokens,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		AllowedOrigins:     cfg.AllowedOrigins,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr, "provider", cfg.TranslatorProvider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newBlobStore(cfg config.FileConfig) (storage.BlobStore, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.StorageDir)
}

// newGateway builds the provider chain: the configured primary first, then
// the remaining configured providers as quota fallbacks.
func newGateway(cfg config.FileConfig) *translate.Gateway {
	var openai, deepl, azure translate.Provider
	if cfg.OpenAIAPIKey != "" {
		openai = translate.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.DeepLAPIKey != "" {
		deepl = translate.NewDeepL(cfg.DeepLAPIKey, cfg.DeepLAPIURL)
	}
	if cfg.AzureKey != "" {
		azure = translate.NewAzure(cfg.AzureKey, cfg.AzureRegion, cfg.AzureEndpoint)
	}

	var primary translate.Provider
	switch cfg.TranslatorProvider {
	case "openai":
		primary = openai
	case "deepl":
		primary = deepl
	case "azure":
		primary = azure
	}

	var fallbacks []translate.Provider
	for _, p := range []translate.Provider{openai, deepl, azure} {
		if p != nil && p != primary {
			fallbacks = append(fallbacks, p)
		}
	}
	return translate.NewGateway(primary, fallbacks...)
}
