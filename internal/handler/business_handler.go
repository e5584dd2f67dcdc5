package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tradesite/internal/business"
	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/storage"
)

// BusinessServiceInterface はビジネスハンドラーが必要とするサービスインターフェース。
type BusinessServiceInterface interface {
	Get(ctx context.Context, clerkID, businessID string) (*model.Business, error)
	GetMine(ctx context.Context, clerkID string) (*model.Business, error)
	GetBySlug(ctx context.Context, slug string) (*model.Business, error)
	UpdateFields(ctx context.Context, clerkID, businessID string, in business.FieldsInput) error
	UpdateContact(ctx context.Context, clerkID, businessID, email, phone, mobile string) error
	UpdateSEO(ctx context.Context, clerkID, businessID string, in business.SEOInput) error
	UpdateSiteContent(ctx context.Context, clerkID, businessID, sectionKey string, value map[string]any) error
	AddKeyword(ctx context.Context, clerkID, businessID, keyword string) error
	RemoveKeyword(ctx context.Context, clerkID, businessID, keyword string) error
	AddService(ctx context.Context, clerkID, businessID string, in business.ServiceInput) (*model.Service, error)
	UpdateService(ctx context.Context, clerkID, businessID, serviceID string, in business.ServiceInput) error
	RemoveService(ctx context.Context, clerkID, businessID, serviceID string) error
	AddServiceArea(ctx context.Context, clerkID, businessID string, in business.ServiceAreaInput) (*model.ServiceArea, error)
	UpdateServiceArea(ctx context.Context, clerkID, businessID, areaID string, in business.ServiceAreaInput) error
	RemoveServiceArea(ctx context.Context, clerkID, businessID, areaID string) error
	AddImage(ctx context.Context, clerkID, businessID string, in business.ImageInput) (*model.BusinessImage, error)
	RemoveImage(ctx context.Context, clerkID, businessID, imageID string) error
	ReorderImages(ctx context.Context, clerkID, businessID string, orderedIDs []string) error
	SetImageURL(ctx context.Context, clerkID, businessID, kind, url string) error
}

// BusinessHandler はビジネスCRUDのHTTPハンドラー。
type BusinessHandler struct {
	service  BusinessServiceInterface
	uploader storage.Uploader // S3未設定時はnil
}

// NewBusinessHandler はBusinessHandlerを生成する。
func NewBusinessHandler(service BusinessServiceInterface, uploader storage.Uploader) *BusinessHandler {
	return &BusinessHandler{
		service:  service,
		uploader: uploader,
	}
}

// businessResponse はビジネスのAPIレスポンス。
type businessResponse struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	TradingName  string `json:"trading_name,omitempty"`
	Slug         string `json:"slug"`
	ABN          string `json:"abn,omitempty"`
	Category     string `json:"category"`
	BusinessType string `json:"business_type"`
	YearFounded  *int   `json:"year_founded,omitempty"`
	Tagline      string `json:"tagline,omitempty"`
	About        string `json:"about"`

	Services     []model.Service       `json:"services"`
	ServiceAreas []model.ServiceArea   `json:"service_areas"`
	Images       []model.BusinessImage `json:"images"`
	Keywords     []string              `json:"keywords"`
	SiteContent  map[string]any        `json:"site_content"`

	Logo      string `json:"logo,omitempty"`
	HeroImage string `json:"hero_image,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Mobile    string `json:"mobile,omitempty"`

	Domain         string     `json:"domain,omitempty"`
	Verified       bool       `json:"verified"`
	VerifiedDate   *time.Time `json:"verified_date,omitempty"`
	VerifiedMethod string     `json:"verified_method,omitempty"`

	PlanType  string    `json:"plan_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetMine は認証ユーザーのビジネスを返す。
// GET /api/businesses/me
func (h *BusinessHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetMine(r.Context(), clerkID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessResponse(b))
}

// Get はビジネス詳細を返す。
// GET /api/businesses/:id
func (h *BusinessHandler) Get(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), clerkID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessResponse(b))
}

// GetBySlug は公開サイト向けにビジネスを返す。認証不要。
// GET /api/sites/:slug
func (h *BusinessHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessResponse(b))
}

// UpdateFields はビジネス基本情報を部分更新する。
// PATCH /api/businesses/:id
func (h *BusinessHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.FieldsInput
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateFields(r.Context(), clerkID, chi.URLParam(r, "id"), req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// updateContactRequest は連絡先更新リクエストのボディ。
type updateContactRequest struct {
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Mobile string `json:"mobile"`
}

// UpdateContact は連絡先を上書きする。
// PUT /api/businesses/:id/contact
func (h *BusinessHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateContactRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateContact(r.Context(), clerkID, chi.URLParam(r, "id"), req.Email, req.Phone, req.Mobile); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// UpdateSEO はSEO設定を更新する。
// PUT /api/businesses/:id/seo
func (h *BusinessHandler) UpdateSEO(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.SEOInput
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateSEO(r.Context(), clerkID, chi.URLParam(r, "id"), req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// updateContentRequest はセクションコンテンツ更新リクエストのボディ。
type updateContentRequest struct {
	Section string         `json:"section"`
	Content map[string]any `json:"content"`
}

// UpdateContent はサイトコンテンツのセクションを上書きする。
// PUT /api/businesses/:id/content
func (h *BusinessHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateContentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateSiteContent(r.Context(), clerkID, chi.URLParam(r, "id"), req.Section, req.Content); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// keywordRequest はキーワード追加/削除リクエストのボディ。
type keywordRequest struct {
	Keyword string `json:"keyword"`
}

// AddKeyword はキーワードを追加する。
// POST /api/businesses/:id/keywords
func (h *BusinessHandler) AddKeyword(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req keywordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.AddKeyword(r.Context(), clerkID, chi.URLParam(r, "id"), req.Keyword); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, successResponse{Success: true})
}

// RemoveKeyword はキーワードを削除する。
// DELETE /api/businesses/:id/keywords
func (h *BusinessHandler) RemoveKeyword(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req keywordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.RemoveKeyword(r.Context(), clerkID, chi.URLParam(r, "id"), req.Keyword); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// AddService はサービス項目を追加する。
// POST /api/businesses/:id/services
func (h *BusinessHandler) AddService(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.ServiceInput
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.service.AddService(r.Context(), clerkID, chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateService はサービス項目を更新する。
// PATCH /api/businesses/:id/services/:serviceID
func (h *BusinessHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.ServiceInput
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateService(r.Context(), clerkID, chi.URLParam(r, "id"), chi.URLParam(r, "serviceID"), req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// RemoveService はサービス項目を削除する。
// DELETE /api/businesses/:id/services/:serviceID
func (h *BusinessHandler) RemoveService(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveService(r.Context(), clerkID, chi.URLParam(r, "id"), chi.URLParam(r, "serviceID")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// AddServiceArea は対応エリアを追加する。
// POST /api/businesses/:id/service-areas
func (h *BusinessHandler) AddServiceArea(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.ServiceAreaInput
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.service.AddServiceArea(r.Context(), clerkID, chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateServiceArea は対応エリアを更新する。
// PATCH /api/businesses/:id/service-areas/:areaID
func (h *BusinessHandler) UpdateServiceArea(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.ServiceAreaInput
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateServiceArea(r.Context(), clerkID, chi.URLParam(r, "id"), chi.URLParam(r, "areaID"), req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// RemoveServiceArea は対応エリアを削除する。
// DELETE /api/businesses/:id/service-areas/:areaID
func (h *BusinessHandler) RemoveServiceArea(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveServiceArea(r.Context(), clerkID, chi.URLParam(r, "id"), chi.URLParam(r, "areaID")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// AddImage は画像を追加する。
// POST /api/businesses/:id/images
func (h *BusinessHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req business.ImageInput
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.service.AddImage(r.Context(), clerkID, chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// RemoveImage は画像を削除する。
// DELETE /api/businesses/:id/images/:imageID
func (h *BusinessHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveImage(r.Context(), clerkID, chi.URLParam(r, "id"), chi.URLParam(r, "imageID")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// reorderImagesRequest は画像並び替えリクエストのボディ。
type reorderImagesRequest struct {
	ImageIDs []string `json:"image_ids"`
}

// ReorderImages は画像の並び順を変更する。
// PUT /api/businesses/:id/images/reorder
func (h *BusinessHandler) ReorderImages(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req reorderImagesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ReorderImages(r.Context(), clerkID, chi.URLParam(r, "id"), req.ImageIDs); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// setImageURLRequest はロゴ/ヒーロー画像URL設定リクエストのボディ。
type setImageURLRequest struct {
	URL string `json:"url"`
}

// SetLogo はロゴ画像URLを設定する。
// PUT /api/businesses/:id/logo
func (h *BusinessHandler) SetLogo(w http.ResponseWriter, r *http.Request) {
	h.setImageURL(w, r, "logo")
}

// SetHeroImage はヒーロー画像URLを設定する。
// PUT /api/businesses/:id/hero-image
func (h *BusinessHandler) SetHeroImage(w http.ResponseWriter, r *http.Request) {
	h.setImageURL(w, r, "hero_image")
}

func (h *BusinessHandler) setImageURL(w http.ResponseWriter, r *http.Request, kind string) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req setImageURLRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetImageURL(r.Context(), clerkID, chi.URLParam(r, "id"), kind, req.URL); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// uploadURLRequest はアップロードURL発行リクエストのボディ。
type uploadURLRequest struct {
	Filename string `json:"filename"`
}

// CreateUploadURL は画像アップロード用のpresigned URLを発行する。
// POST /api/businesses/:id/images/upload-url
func (h *BusinessHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if h.uploader == nil {
		writeAPIErrorResponse(w, http.StatusNotImplemented, &model.APIError{
			Code:     "UPLOADS_DISABLED",
			Message:  "画像アップロードは現在利用できません。",
			Category: "system",
			Action:   "画像URLを直接指定してください。",
		})
		return
	}

	// 所有権チェックのためビジネスを取得する
	businessID := chi.URLParam(r, "id")
	if _, err := h.service.Get(r.Context(), clerkID, businessID); err != nil {
		handleServiceError(w, err)
		return
	}

	var req uploadURLRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target, err := h.uploader.PresignUpload(r.Context(), businessID, req.Filename)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, target)
}

// toBusinessResponse はmodel.BusinessからAPIレスポンスに変換する。
func toBusinessResponse(b *model.Business) businessResponse {
	resp := businessResponse{
		ID:             b.ID,
		BusinessName:   b.BusinessName,
		TradingName:    b.TradingName,
		Slug:           b.Slug,
		ABN:            b.ABN,
		Category:       b.Category,
		BusinessType:   string(b.BusinessType),
		YearFounded:    b.YearFounded,
		Tagline:        b.Tagline,
		About:          b.About,
		Services:       b.Services,
		ServiceAreas:   b.ServiceAreas,
		Images:         b.Images,
		Keywords:       b.Keywords,
		SiteContent:    b.SiteContent,
		Logo:           b.Logo,
		HeroImage:      b.HeroImage,
		Email:          b.Email,
		Phone:          b.Phone,
		Mobile:         b.Mobile,
		Domain:         b.Domain,
		Verified:       b.Verified,
		VerifiedDate:   b.VerifiedDate,
		VerifiedMethod: b.VerifiedMethod,
		PlanType:       string(b.PlanType),
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}

	// 空コレクションはnullではなく[]で返す
	if resp.Services == nil {
		resp.Services = []model.Service{}
	}
	if resp.ServiceAreas == nil {
		resp.ServiceAreas = []model.ServiceArea{}
	}
	if resp.Images == nil {
		resp.Images = []model.BusinessImage{}
	}
	if resp.Keywords == nil {
		resp.Keywords = []string{}
	}
	if resp.SiteContent == nil {
		resp.SiteContent = map[string]any{}
	}
	return resp
}
