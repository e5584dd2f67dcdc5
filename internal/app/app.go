package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tradesite/internal/aigen"
	"github.com/hitoshi/tradesite/internal/auth"
	"github.com/hitoshi/tradesite/internal/business"
	"github.com/hitoshi/tradesite/internal/config"
	"github.com/hitoshi/tradesite/internal/database"
	"github.com/hitoshi/tradesite/internal/domainverify"
	"github.com/hitoshi/tradesite/internal/handler"
	"github.com/hitoshi/tradesite/internal/identity"
	"github.com/hitoshi/tradesite/internal/logger"
	"github.com/hitoshi/tradesite/internal/metrics"
	"github.com/hitoshi/tradesite/internal/middleware"
	"github.com/hitoshi/tradesite/internal/onboarding"
	"github.com/hitoshi/tradesite/internal/places"
	"github.com/hitoshi/tradesite/internal/repository"
	"github.com/hitoshi/tradesite/internal/security"
	"github.com/hitoshi/tradesite/internal/storage"
	"github.com/hitoshi/tradesite/internal/template"
	"github.com/hitoshi/tradesite/internal/usage"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandServe:
		return runServe(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	businessRepo := repository.NewPostgresBusinessRepo(db)
	templateRepo := repository.NewPostgresTemplateRepo(db)

	// 3. セキュリティ・観測サービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. JWT検証の初期化（起動時にJWKSを取得する）
	verifier, err := auth.NewVerifier(cfg.ClerkIssuer, cfg.ClerkJWKSURL)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	// 5. ドメインサービスの初期化
	identityService := identity.NewService(userRepo, collector)
	businessService := business.NewService(businessRepo, sanitizer)
	onboardingService := onboarding.NewService(businessRepo, userRepo, collector)
	templateService := template.NewService(templateRepo, businessRepo)
	domainService := domainverify.NewService(businessRepo, net.DefaultResolver, ssrfGuard, collector)
	placesService := places.NewService(
		&http.Client{Timeout: cfg.PlacesTimeout},
		slog.Default(),
		cfg.PlacesAPIKey,
	)

	// AI生成はAPIキー未設定時に無効（生成リクエストはGENERATION_FAILEDになる）
	var generator aigen.ContentGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = aigen.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		slog.Warn("OPENAI_API_KEY is not set; ai generation is disabled")
	}
	usageService := usage.NewService(businessRepo, userRepo, generator, collector)

	// 画像アップロードはS3未設定時に無効
	var uploader storage.Uploader
	if cfg.S3Bucket != "" {
		u, err := storage.NewS3Uploader(context.Background(), storage.Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 uploader: %w", err)
		}
		uploader = u
	} else {
		slog.Warn("S3_BUCKET is not set; image uploads are disabled")
	}

	// 6. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfigFor(cfg.RateLimitGeneral, cfg.RateLimitAIGen)

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		TokenVerifier:     verifier,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),

		MetricsHandler: metrics.Handler(registry),

		IdentityService: identityService,
		WebhookSecret:   cfg.ClerkWebhookSecret,

		UserService:       identityService,
		BusinessService:   businessService,
		OnboardingService: onboardingService,
		AIService:         usageService,
		TemplateService:   templateService,
		DomainService:     domainService,
		PlacesService:     placesService,

		Uploader: uploader,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
