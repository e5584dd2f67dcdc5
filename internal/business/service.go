// Package business はビジネス（テナント）と埋め込みコレクションのCRUDを提供する。
//
// 全ての更新は「認証 → 所有権の結合 → 入力検証 → 対象を絞った1回の書き込み」
// の形をとる。コレクションはビジネス行のJSONB列に格納され、変更は
// リポジトリのトランザクション内read-modify-writeで行われる。
package business

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/plan"
	"github.com/hitoshi/tradesite/internal/repository"
	"github.com/hitoshi/tradesite/internal/security"
)

var (
	abnPattern   = regexp.MustCompile(`^\d{11}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-+()]*$`)
)

// 価格種別の許可値。
var validPriceTypes = map[string]bool{
	"fixed":  true,
	"hourly": true,
	"quote":  true,
}

// 画像種別の許可値。
var validImageTypes = map[string]bool{
	"gallery": true,
	"hero":    true,
	"logo":    true,
	"favicon": true,
}

// Repository はCRUD操作に必要なリポジトリの部分集合。
type Repository interface {
	FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error)
	FindByOwnerClerkID(ctx context.Context, clerkID string) (*model.Business, error)
	FindBySlug(ctx context.Context, slug string) (*model.Business, error)
	UpdateFields(ctx context.Context, id string, in repository.BusinessFieldsUpdate) error
	UpdateContact(ctx context.Context, id, email, phone, mobile string) error
	MutateServices(ctx context.Context, id string, fn func([]model.Service) ([]model.Service, error)) error
	MutateServiceAreas(ctx context.Context, id string, fn func([]model.ServiceArea) ([]model.ServiceArea, error)) error
	MutateImages(ctx context.Context, id string, fn func([]model.BusinessImage) ([]model.BusinessImage, error)) error
	MutateKeywords(ctx context.Context, id string, fn func([]string) ([]string, error)) error
	MutateSiteContent(ctx context.Context, id string, fn func(map[string]any) (map[string]any, error)) error
	UpdateImageURL(ctx context.Context, id, kind, url string) error
}

// Service はビジネスCRUDのサービス層。
type Service struct {
	repo      Repository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo Repository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// owned は所有権チェック付きでビジネスを取得する。
func (s *Service) owned(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
	b, err := s.repo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}
	return b, nil
}

// Get は所有するビジネスをIDで取得する。
func (s *Service) Get(ctx context.Context, clerkID, businessID string) (*model.Business, error) {
	return s.owned(ctx, businessID, clerkID)
}

// GetMine は認証ユーザーのビジネスを取得する。
func (s *Service) GetMine(ctx context.Context, clerkID string) (*model.Business, error) {
	b, err := s.repo.FindByOwnerClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}
	return b, nil
}

// GetBySlug は公開サイト向けにスラグでビジネスを取得する。認証不要。
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.Business, error) {
	b, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}
	return b, nil
}

// FieldsInput はビジネス基本情報の部分更新の入力。nilのフィールドは変更しない。
type FieldsInput struct {
	BusinessName *string `json:"business_name"`
	TradingName  *string `json:"trading_name"`
	ABN          *string `json:"abn"`
	Category     *string `json:"category"`
	Tagline      *string `json:"tagline"`
	About        *string `json:"about"`
	YearFounded  *int    `json:"year_founded"`
}

// UpdateFields はビジネス基本情報を部分更新する。
func (s *Service) UpdateFields(ctx context.Context, clerkID, businessID string, in FieldsInput) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	update := repository.BusinessFieldsUpdate{}

	if in.BusinessName != nil {
		name := strings.TrimSpace(*in.BusinessName)
		if len(name) < 2 || len(name) > 100 {
			return model.NewValidationError("ビジネス名は2〜100文字で入力してください。")
		}
		update.BusinessName = &name
	}
	if in.TradingName != nil {
		trading := strings.TrimSpace(*in.TradingName)
		if len(trading) > 100 {
			return model.NewValidationError("屋号は100文字以内で入力してください。")
		}
		update.TradingName = &trading
	}
	if in.ABN != nil {
		abn := strings.ReplaceAll(*in.ABN, " ", "")
		if abn != "" && !abnPattern.MatchString(abn) {
			return model.NewValidationError("ABNは11桁の数字で入力してください。")
		}
		update.ABN = &abn
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category == "" {
			return model.NewValidationError("カテゴリを入力してください。")
		}
		update.Category = &category
	}
	if in.Tagline != nil {
		tagline := s.sanitizer.SanitizeStrict(strings.TrimSpace(*in.Tagline))
		if len(tagline) > 200 {
			return model.NewValidationError("キャッチコピーは200文字以内で入力してください。")
		}
		update.Tagline = &tagline
	}
	if in.About != nil {
		about := s.sanitizer.Sanitize(strings.TrimSpace(*in.About))
		if len(about) < 50 || len(about) > 2000 {
			return model.NewValidationError("ビジネス紹介文は50〜2000文字で入力してください。")
		}
		update.About = &about
	}
	if in.YearFounded != nil {
		year := *in.YearFounded
		if year < 1800 || year > time.Now().Year() {
			return model.NewValidationError(fmt.Sprintf("創業年は1800〜%dの範囲で入力してください。", time.Now().Year()))
		}
		update.YearFounded = &year
	}

	if err := s.repo.UpdateFields(ctx, b.ID, update); err != nil {
		return fmt.Errorf("ビジネスの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateContact は連絡先を上書きする。
func (s *Service) UpdateContact(ctx context.Context, clerkID, businessID, email, phone, mobile string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if email != "" && !strings.Contains(email, "@") {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	if !phonePattern.MatchString(phone) {
		return model.NewValidationError("電話番号の形式が正しくありません。")
	}
	if !phonePattern.MatchString(mobile) {
		return model.NewValidationError("携帯番号の形式が正しくありません。")
	}

	if err := s.repo.UpdateContact(ctx, b.ID, email, phone, mobile); err != nil {
		return fmt.Errorf("連絡先の更新に失敗しました: %w", err)
	}
	return nil
}

// SEOInput はSEO設定の入力。
type SEOInput struct {
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
}

// UpdateSEO はsite_content.seoをマージ更新する。
func (s *Service) UpdateSEO(ctx context.Context, clerkID, businessID string, in SEOInput) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	if len(in.MetaTitle) > 70 {
		return model.NewValidationError("メタタイトルは70文字以内で入力してください。")
	}
	if len(in.MetaDescription) > 160 {
		return model.NewValidationError("メタディスクリプションは160文字以内で入力してください。")
	}
	if len(in.Keywords) > 20 {
		return model.NewValidationError("SEOキーワードは20件以内で入力してください。")
	}

	err = s.repo.MutateSiteContent(ctx, b.ID, func(content map[string]any) (map[string]any, error) {
		if content == nil {
			content = map[string]any{}
		}
		content["seo"] = map[string]any{
			"meta_title":       s.sanitizer.SanitizeStrict(in.MetaTitle),
			"meta_description": s.sanitizer.SanitizeStrict(in.MetaDescription),
			"keywords":         in.Keywords,
		}
		return content, nil
	})
	if err != nil {
		return fmt.Errorf("SEO設定の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateSiteContent はセクションのコンテンツブロブをマージ更新する。
// AI生成結果の保存にも使用される。
func (s *Service) UpdateSiteContent(ctx context.Context, clerkID, businessID, sectionKey string, value map[string]any) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(sectionKey) == "" {
		return model.NewValidationError("セクション名を指定してください。")
	}

	err = s.repo.MutateSiteContent(ctx, b.ID, func(content map[string]any) (map[string]any, error) {
		if content == nil {
			content = map[string]any{}
		}
		content[sectionKey] = value
		return content, nil
	})
	if err != nil {
		return fmt.Errorf("サイトコンテンツの更新に失敗しました: %w", err)
	}
	return nil
}

// AddKeyword はキーワードを追加する。プラン上限と重複をチェックする。
func (s *Service) AddKeyword(ctx context.Context, clerkID, businessID, keyword string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	keyword = s.sanitizer.SanitizeStrict(strings.TrimSpace(keyword))
	if len(keyword) < 2 || len(keyword) > 50 {
		return model.NewValidationError("キーワードは2〜50文字で入力してください。")
	}

	limits := plan.LimitsFor(b.PlanType)
	err = s.repo.MutateKeywords(ctx, b.ID, func(keywords []string) ([]string, error) {
		for _, existing := range keywords {
			if strings.EqualFold(existing, keyword) {
				return nil, model.NewValidationError("このキーワードは既に登録されています。")
			}
		}
		if !plan.WithinLimit(limits.MaxKeywords, len(keywords)) {
			return nil, model.NewLimitReachedError("キーワード", limits.MaxKeywords)
		}
		return append(keywords, keyword), nil
	})
	if err != nil {
		return wrapMutateError(err, "キーワードの追加に失敗しました")
	}
	return nil
}

// RemoveKeyword はキーワードを削除する。
func (s *Service) RemoveKeyword(ctx context.Context, clerkID, businessID, keyword string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	err = s.repo.MutateKeywords(ctx, b.ID, func(keywords []string) ([]string, error) {
		out := keywords[:0]
		for _, existing := range keywords {
			if !strings.EqualFold(existing, keyword) {
				out = append(out, existing)
			}
		}
		return out, nil
	})
	if err != nil {
		return wrapMutateError(err, "キーワードの削除に失敗しました")
	}
	return nil
}

// ServiceInput はサービス項目の入力。
type ServiceInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	PriceType   string   `json:"price_type"`
	IsFeatured  bool     `json:"is_featured"`
}

// validateServiceInput はサービス項目の共通検証を行う。
func (s *Service) validateServiceInput(in *ServiceInput) error {
	in.Name = s.sanitizer.SanitizeStrict(strings.TrimSpace(in.Name))
	in.Description = s.sanitizer.SanitizeStrict(strings.TrimSpace(in.Description))

	if len(in.Name) < 2 {
		return model.NewValidationError("サービス名は2文字以上で入力してください。")
	}
	if len(in.Description) > 500 {
		return model.NewValidationError("サービス説明は500文字以内で入力してください。")
	}
	if in.Price != nil && *in.Price <= 0 {
		return model.NewValidationError("価格は0より大きい値を入力してください。")
	}
	if in.PriceType != "" && !validPriceTypes[in.PriceType] {
		return model.NewValidationError("価格種別は fixed / hourly / quote のいずれかを指定してください。")
	}
	return nil
}

// AddService はサービス項目を追加する。
func (s *Service) AddService(ctx context.Context, clerkID, businessID string, in ServiceInput) (*model.Service, error) {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return nil, err
	}
	if err := s.validateServiceInput(&in); err != nil {
		return nil, err
	}

	created := model.Service{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		PriceType:   in.PriceType,
		IsFeatured:  in.IsFeatured,
	}

	limits := plan.LimitsFor(b.PlanType)
	err = s.repo.MutateServices(ctx, b.ID, func(services []model.Service) ([]model.Service, error) {
		if !plan.WithinLimit(limits.MaxServices, len(services)) {
			return nil, model.NewLimitReachedError("サービス", limits.MaxServices)
		}
		return append(services, created), nil
	})
	if err != nil {
		return nil, wrapMutateError(err, "サービスの追加に失敗しました")
	}
	return &created, nil
}

// UpdateService は既存のサービス項目を更新する。
func (s *Service) UpdateService(ctx context.Context, clerkID, businessID, serviceID string, in ServiceInput) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}
	if err := s.validateServiceInput(&in); err != nil {
		return err
	}

	err = s.repo.MutateServices(ctx, b.ID, func(services []model.Service) ([]model.Service, error) {
		for i := range services {
			if services[i].ID == serviceID {
				services[i].Name = in.Name
				services[i].Description = in.Description
				services[i].Price = in.Price
				services[i].PriceType = in.PriceType
				services[i].IsFeatured = in.IsFeatured
				return services, nil
			}
		}
		return nil, model.NewValidationError("指定されたサービスが見つかりません。")
	})
	if err != nil {
		return wrapMutateError(err, "サービスの更新に失敗しました")
	}
	return nil
}

// RemoveService はサービス項目を削除する。
func (s *Service) RemoveService(ctx context.Context, clerkID, businessID, serviceID string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	err = s.repo.MutateServices(ctx, b.ID, func(services []model.Service) ([]model.Service, error) {
		out := services[:0]
		for _, svc := range services {
			if svc.ID != serviceID {
				out = append(out, svc)
			}
		}
		return out, nil
	})
	if err != nil {
		return wrapMutateError(err, "サービスの削除に失敗しました")
	}
	return nil
}

// ServiceAreaInput は対応エリアの入力。
type ServiceAreaInput struct {
	Name             string `json:"name"`
	Suburb           string `json:"suburb"`
	Postcode         string `json:"postcode"`
	PlaceID          string `json:"place_id"`
	FormattedAddress string `json:"formatted_address"`
}

// AddServiceArea は対応エリアを追加する。
func (s *Service) AddServiceArea(ctx context.Context, clerkID, businessID string, in ServiceAreaInput) (*model.ServiceArea, error) {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return nil, err
	}

	in.Name = s.sanitizer.SanitizeStrict(strings.TrimSpace(in.Name))
	if in.Name == "" {
		return nil, model.NewValidationError("エリア名を入力してください。")
	}

	created := model.ServiceArea{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Suburb:           strings.TrimSpace(in.Suburb),
		Postcode:         strings.TrimSpace(in.Postcode),
		PlaceID:          strings.TrimSpace(in.PlaceID),
		FormattedAddress: strings.TrimSpace(in.FormattedAddress),
	}

	limits := plan.LimitsFor(b.PlanType)
	err = s.repo.MutateServiceAreas(ctx, b.ID, func(areas []model.ServiceArea) ([]model.ServiceArea, error) {
		if !plan.WithinLimit(limits.MaxServiceAreas, len(areas)) {
			return nil, model.NewLimitReachedError("対応エリア", limits.MaxServiceAreas)
		}
		return append(areas, created), nil
	})
	if err != nil {
		return nil, wrapMutateError(err, "対応エリアの追加に失敗しました")
	}
	return &created, nil
}

// UpdateServiceArea は対応エリアを更新する。
func (s *Service) UpdateServiceArea(ctx context.Context, clerkID, businessID, areaID string, in ServiceAreaInput) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	in.Name = s.sanitizer.SanitizeStrict(strings.TrimSpace(in.Name))
	if in.Name == "" {
		return model.NewValidationError("エリア名を入力してください。")
	}

	err = s.repo.MutateServiceAreas(ctx, b.ID, func(areas []model.ServiceArea) ([]model.ServiceArea, error) {
		for i := range areas {
			if areas[i].ID == areaID {
				areas[i].Name = in.Name
				areas[i].Suburb = strings.TrimSpace(in.Suburb)
				areas[i].Postcode = strings.TrimSpace(in.Postcode)
				areas[i].PlaceID = strings.TrimSpace(in.PlaceID)
				areas[i].FormattedAddress = strings.TrimSpace(in.FormattedAddress)
				return areas, nil
			}
		}
		return nil, model.NewValidationError("指定された対応エリアが見つかりません。")
	})
	if err != nil {
		return wrapMutateError(err, "対応エリアの更新に失敗しました")
	}
	return nil
}

// RemoveServiceArea は対応エリアを削除する。
func (s *Service) RemoveServiceArea(ctx context.Context, clerkID, businessID, areaID string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	err = s.repo.MutateServiceAreas(ctx, b.ID, func(areas []model.ServiceArea) ([]model.ServiceArea, error) {
		out := areas[:0]
		for _, area := range areas {
			if area.ID != areaID {
				out = append(out, area)
			}
		}
		return out, nil
	})
	if err != nil {
		return wrapMutateError(err, "対応エリアの削除に失敗しました")
	}
	return nil
}

// ImageInput は画像の入力。
type ImageInput struct {
	URL  string `json:"url"`
	Alt  string `json:"alt"`
	Type string `json:"type"`
}

// AddImage は画像を追加する。
func (s *Service) AddImage(ctx context.Context, clerkID, businessID string, in ImageInput) (*model.BusinessImage, error) {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return nil, err
	}

	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, model.NewValidationError("画像URLを指定してください。")
	}
	if len(in.Alt) > 200 {
		return nil, model.NewValidationError("代替テキストは200文字以内で入力してください。")
	}
	if in.Type == "" {
		in.Type = "gallery"
	}
	if !validImageTypes[in.Type] {
		return nil, model.NewValidationError("画像種別は gallery / hero / logo / favicon のいずれかを指定してください。")
	}

	created := model.BusinessImage{
		ID:   uuid.NewString(),
		URL:  in.URL,
		Alt:  s.sanitizer.SanitizeStrict(in.Alt),
		Type: in.Type,
	}

	limits := plan.LimitsFor(b.PlanType)
	err = s.repo.MutateImages(ctx, b.ID, func(images []model.BusinessImage) ([]model.BusinessImage, error) {
		if !plan.WithinLimit(limits.MaxImages, len(images)) {
			return nil, model.NewLimitReachedError("画像", limits.MaxImages)
		}
		return append(images, created), nil
	})
	if err != nil {
		return nil, wrapMutateError(err, "画像の追加に失敗しました")
	}
	return &created, nil
}

// RemoveImage は画像を削除する。
func (s *Service) RemoveImage(ctx context.Context, clerkID, businessID, imageID string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	err = s.repo.MutateImages(ctx, b.ID, func(images []model.BusinessImage) ([]model.BusinessImage, error) {
		out := images[:0]
		for _, img := range images {
			if img.ID != imageID {
				out = append(out, img)
			}
		}
		return out, nil
	})
	if err != nil {
		return wrapMutateError(err, "画像の削除に失敗しました")
	}
	return nil
}

// ReorderImages は画像の並び順をID列で指定された順に変更する。
// ID列は既存の画像集合と完全一致している必要がある。
func (s *Service) ReorderImages(ctx context.Context, clerkID, businessID string, orderedIDs []string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	err = s.repo.MutateImages(ctx, b.ID, func(images []model.BusinessImage) ([]model.BusinessImage, error) {
		if len(orderedIDs) != len(images) {
			return nil, model.NewValidationError("並び順のID数が画像数と一致しません。")
		}
		byID := make(map[string]model.BusinessImage, len(images))
		for _, img := range images {
			byID[img.ID] = img
		}
		out := make([]model.BusinessImage, 0, len(orderedIDs))
		for _, id := range orderedIDs {
			img, ok := byID[id]
			if !ok {
				return nil, model.NewValidationError(fmt.Sprintf("不明な画像IDが含まれています: %s", id))
			}
			out = append(out, img)
			delete(byID, id)
		}
		return out, nil
	})
	if err != nil {
		return wrapMutateError(err, "画像の並び替えに失敗しました")
	}
	return nil
}

// SetImageURL はロゴまたはヒーロー画像のURLを設定する。
func (s *Service) SetImageURL(ctx context.Context, clerkID, businessID, kind, url string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	if kind != "logo" && kind != "hero_image" {
		return model.NewValidationError("画像種別は logo / hero_image のいずれかを指定してください。")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return model.NewValidationError("画像URLを指定してください。")
	}

	if err := s.repo.UpdateImageURL(ctx, b.ID, kind, url); err != nil {
		return fmt.Errorf("画像URLの更新に失敗しました: %w", err)
	}

	slog.Info("business image updated",
		slog.String("business_id", b.ID),
		slog.String("kind", kind),
	)
	return nil
}

// wrapMutateError はMutateコールバック由来のAPIErrorをそのまま通し、
// インフラエラーのみをラップする。
func wrapMutateError(err error, message string) error {
	if _, ok := err.(*model.APIError); ok {
		return err
	}
	return fmt.Errorf("%s: %w", message, err)
}
