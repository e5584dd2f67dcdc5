package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tradesite/internal/auth"
	"github.com/hitoshi/tradesite/internal/middleware"
	"github.com/hitoshi/tradesite/internal/storage"
)

// HealthChecker はヘルスチェックでDB疎通を確認するインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	TokenVerifier     auth.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用
	MetricsHandler http.Handler

	// webhook
	IdentityService IdentityServiceInterface
	WebhookSecret   string

	// ドメインサービス
	UserService       UserServiceInterface
	BusinessService   BusinessServiceInterface
	OnboardingService OnboardingServiceInterface
	AIService         AIServiceInterface
	TemplateService   TemplateServiceInterface
	DomainService     DomainServiceInterface
	PlacesService     PlacesServiceInterface

	// S3未設定時はnil
	Uploader storage.Uploader
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth(JWT) → RateLimit(General)
//
// webhook・公開サイト・運用系のルートは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	webhookHandler := NewWebhookHandler(deps.IdentityService, deps.WebhookSecret)
	userHandler := NewUserHandler(deps.UserService)
	businessHandler := NewBusinessHandler(deps.BusinessService, deps.Uploader)
	onboardingHandler := NewOnboardingHandler(deps.OnboardingService)
	aiHandler := NewAIHandler(deps.AIService)
	templateHandler := NewTemplateHandler(deps.TemplateService)
	domainHandler := NewDomainHandler(deps.DomainService)
	placesHandler := NewPlacesHandler(deps.PlacesService)

	// --- 認証不要のルート ---

	// 運用系
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// IdPユーザー同期webhook（svix署名で保護される）
	r.Post("/api/webhooks/clerk", webhookHandler.HandleWebhook)

	// 公開サイトの読み取り
	r.Get("/api/sites/{slug}", businessHandler.GetBySlug)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth(JWT) → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)
			r.Put("/plan", userHandler.UpdatePlan)
		})

		// オンボーディング
		r.Route("/api/onboarding", func(r chi.Router) {
			r.Get("/steps", onboardingHandler.Steps)
			r.Post("/steps/{step}", onboardingHandler.SaveStep)
			r.Post("/submit", onboardingHandler.Submit)
		})

		// テンプレートカタログ
		r.Route("/api/templates", func(r chi.Router) {
			r.Get("/", templateHandler.List)
			r.Get("/{slug}", templateHandler.GetBySlug)
		})

		// 住所検索
		r.Route("/api/places", func(r chi.Router) {
			r.Get("/autocomplete", placesHandler.Autocomplete)
			r.Get("/details", placesHandler.Detail)
		})

		// ビジネス管理
		r.Get("/api/businesses/me", businessHandler.GetMine)
		r.Route("/api/businesses/{id}", func(r chi.Router) {
			r.Get("/", businessHandler.Get)
			r.Patch("/", businessHandler.UpdateFields)
			r.Put("/contact", businessHandler.UpdateContact)
			r.Put("/seo", businessHandler.UpdateSEO)
			r.Put("/content", businessHandler.UpdateContent)
			r.Put("/logo", businessHandler.SetLogo)
			r.Put("/hero-image", businessHandler.SetHeroImage)

			// キーワード
			r.Post("/keywords", businessHandler.AddKeyword)
			r.Delete("/keywords", businessHandler.RemoveKeyword)

			// サービス項目
			r.Route("/services", func(r chi.Router) {
				r.Post("/", businessHandler.AddService)
				r.Patch("/{serviceID}", businessHandler.UpdateService)
				r.Delete("/{serviceID}", businessHandler.RemoveService)
			})

			// 対応エリア
			r.Route("/service-areas", func(r chi.Router) {
				r.Post("/", businessHandler.AddServiceArea)
				r.Patch("/{areaID}", businessHandler.UpdateServiceArea)
				r.Delete("/{areaID}", businessHandler.RemoveServiceArea)
			})

			// 画像
			r.Route("/images", func(r chi.Router) {
				r.Post("/", businessHandler.AddImage)
				r.Put("/reorder", businessHandler.ReorderImages)
				r.Post("/upload-url", businessHandler.CreateUploadURL)
				r.Delete("/{imageID}", businessHandler.RemoveImage)
			})

			// AI生成（生成のみ専用レート制限を追加）
			r.Route("/ai", func(r chi.Router) {
				r.With(deps.RateLimiter.AIGenerationMiddleware()).Post("/generate", aiHandler.Generate)
				r.Get("/usage", aiHandler.GetUsage)
				r.Post("/reset", aiHandler.Reset)
			})

			// テンプレート選択
			r.Route("/template", func(r chi.Router) {
				r.Get("/", templateHandler.GetActive)
				r.Put("/", templateHandler.Select)
				r.Put("/customizations", templateHandler.UpdateCustomizations)
			})

			// カスタムドメイン
			r.Route("/domain", func(r chi.Router) {
				r.Put("/", domainHandler.SetDomain)
				r.Post("/verify", domainHandler.Verify)
				r.Delete("/", domainHandler.RemoveDomain)
			})
		})
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil || checker.Ping() != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
