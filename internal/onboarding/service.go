// Package onboarding は5ステップのセットアップウィザードを提供する。
//
// ドラフトはクライアントが保持し、サーバーは各ステップの断片を検証して
// シャローマージした結果を返すだけに留める。submitで全ステップを再検証し、
// ビジネスを組み立てて永続化する。
package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tradesite/internal/metrics"
	"github.com/hitoshi/tradesite/internal/model"
)

var (
	abnPattern      = regexp.MustCompile(`^\d{11}$`)
	slugStripChars  = regexp.MustCompile(`[^a-z0-9]+`)
	minServiceCount = 3
	maxServiceCount = 999
)

// Draft はウィザードのドラフト全体。未入力のステップのフィールドはゼロ値。
type Draft struct {
	BusinessType string `json:"business_type,omitempty"`

	BusinessName string `json:"business_name,omitempty"`
	TradingName  string `json:"trading_name,omitempty"`
	ABN          string `json:"abn,omitempty"`
	Category     string `json:"category,omitempty"`
	Tagline      string `json:"tagline,omitempty"`
	About        string `json:"about,omitempty"`
	YearFounded  *int   `json:"year_founded,omitempty"`

	Services []ServiceDraft `json:"services,omitempty"`

	ServiceAreas []AreaDraft `json:"service_areas,omitempty"`
}

// ServiceDraft はドラフト内のサービス項目。
type ServiceDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	PriceType   string   `json:"price_type,omitempty"`
}

// AreaDraft はドラフト内の対応エリア。
type AreaDraft struct {
	Name             string `json:"name"`
	Suburb           string `json:"suburb,omitempty"`
	Postcode         string `json:"postcode,omitempty"`
	PlaceID          string `json:"place_id,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
}

// StepResult はステップ保存のレスポンス。
type StepResult struct {
	Draft    Draft `json:"draft"`
	Progress int   `json:"progress"`
	NextStep *Step `json:"next_step,omitempty"`
}

// BusinessCreator は提出時の永続化に必要なリポジトリの部分集合。
type BusinessCreator interface {
	FindByOwnerClerkID(ctx context.Context, clerkID string) (*model.Business, error)
	FindBySlug(ctx context.Context, slug string) (*model.Business, error)
	Create(ctx context.Context, b *model.Business) error
}

// UserFinder はプランの引き継ぎに必要なリポジトリの部分集合。
type UserFinder interface {
	FindByClerkID(ctx context.Context, clerkID string) (*model.User, error)
}

// Service はオンボーディングのサービス層。
type Service struct {
	businessRepo BusinessCreator
	userFinder   UserFinder
	metrics      metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(businessRepo BusinessCreator, userFinder UserFinder, collector metrics.MetricsCollector) *Service {
	return &Service{
		businessRepo: businessRepo,
		userFinder:   userFinder,
		metrics:      collector,
	}
}

// SaveStep は1ステップの断片を検証し、ドラフトにシャローマージして返す。
// マージは対象ステップのキーのみに触れる。
func (s *Service) SaveStep(ctx context.Context, stepID string, current, fragment Draft) (*StepResult, error) {
	if stepIndex(stepID) < 0 {
		return nil, model.NewInvalidStepError(stepID)
	}

	merged := mergeStep(stepID, current, fragment)
	if err := validateStep(stepID, merged); err != nil {
		return nil, err
	}

	return &StepResult{
		Draft:    merged,
		Progress: Progress(stepID),
		NextStep: NextStep(stepID),
	}, nil
}

// Submit はドラフト全体を再検証し、ビジネスを組み立てて永続化する。
// ユーザーにプランが未設定の場合、またはビジネスが既に存在する場合はエラー。
func (s *Service) Submit(ctx context.Context, clerkID string, draft Draft) (*model.Business, error) {
	for _, step := range steps {
		if err := validateStep(step.ID, draft); err != nil {
			return nil, err
		}
	}

	user, err := s.userFinder.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if user.PlanType == nil {
		return nil, model.NewPlanRequiredError("サイトの作成")
	}

	existing, err := s.businessRepo.FindByOwnerClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewBusinessExistsError()
	}

	b, err := s.assemble(ctx, user, draft)
	if err != nil {
		return nil, err
	}
	if err := s.businessRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("ビジネスの作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOnboardingCompleted()
	}
	slog.Info("onboarding completed",
		slog.String("business_id", b.ID),
		slog.String("slug", b.Slug),
		slog.String("plan_type", string(b.PlanType)),
	)
	return b, nil
}

// assemble は検証済みドラフトからビジネスを組み立てる。
func (s *Service) assemble(ctx context.Context, user *model.User, draft Draft) (*model.Business, error) {
	slug, err := s.uniqueSlug(ctx, draft.BusinessName)
	if err != nil {
		return nil, err
	}

	services := make([]model.Service, 0, len(draft.Services))
	for _, svc := range draft.Services {
		services = append(services, model.Service{
			ID:          uuid.NewString(),
			Name:        strings.TrimSpace(svc.Name),
			Description: strings.TrimSpace(svc.Description),
			Price:       svc.Price,
			PriceType:   svc.PriceType,
		})
	}

	areas := make([]model.ServiceArea, 0, len(draft.ServiceAreas))
	for _, area := range draft.ServiceAreas {
		areas = append(areas, model.ServiceArea{
			ID:               uuid.NewString(),
			Name:             strings.TrimSpace(area.Name),
			Suburb:           strings.TrimSpace(area.Suburb),
			Postcode:         strings.TrimSpace(area.Postcode),
			PlaceID:          strings.TrimSpace(area.PlaceID),
			FormattedAddress: strings.TrimSpace(area.FormattedAddress),
		})
	}

	return &model.Business{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		BusinessName:  strings.TrimSpace(draft.BusinessName),
		TradingName:   strings.TrimSpace(draft.TradingName),
		Slug:          slug,
		ABN:           strings.ReplaceAll(draft.ABN, " ", ""),
		Category:      strings.TrimSpace(draft.Category),
		BusinessType:  model.BusinessType(draft.BusinessType),
		YearFounded:   draft.YearFounded,
		Tagline:       strings.TrimSpace(draft.Tagline),
		About:         strings.TrimSpace(draft.About),
		Services:      services,
		ServiceAreas:  areas,
		Keywords:      []string{},
		SiteContent:   map[string]any{},
		PlanType:      *user.PlanType,
		AIPeriodStart: time.Now(),
	}, nil
}

// uniqueSlug はビジネス名からスラグを作り、衝突時は短いサフィックスを付ける。
func (s *Service) uniqueSlug(ctx context.Context, name string) (string, error) {
	slug := slugify(name)
	existing, err := s.businessRepo.FindBySlug(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("スラグの確認に失敗しました: %w", err)
	}
	if existing == nil {
		return slug, nil
	}
	return slug + "-" + uuid.NewString()[:8], nil
}

// slugify は名前をURLスラグに変換する。
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStripChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "business"
	}
	return slug
}

// mergeStep はfragmentのうち対象ステップのキーのみをcurrentに上書きする。
func mergeStep(stepID string, current, fragment Draft) Draft {
	merged := current
	switch stepID {
	case StepBusinessType:
		merged.BusinessType = fragment.BusinessType
	case StepBusinessBasics:
		merged.BusinessName = fragment.BusinessName
		merged.TradingName = fragment.TradingName
		merged.ABN = fragment.ABN
		merged.Category = fragment.Category
		merged.Tagline = fragment.Tagline
		merged.About = fragment.About
		merged.YearFounded = fragment.YearFounded
	case StepServices:
		merged.Services = fragment.Services
	case StepLocations:
		merged.ServiceAreas = fragment.ServiceAreas
	case StepReview:
		// 確認ステップは入力を持たない
	}
	return merged
}

// validateStep は1ステップ分のドラフト内容を検証する。各ステップは独立。
func validateStep(stepID string, draft Draft) error {
	switch stepID {
	case StepBusinessType:
		if !model.BusinessType(draft.BusinessType).IsValid() {
			return model.NewValidationError("事業形態は sole_trader / company のいずれかを選択してください。")
		}
	case StepBusinessBasics:
		name := strings.TrimSpace(draft.BusinessName)
		if len(name) < 2 || len(name) > 100 {
			return model.NewValidationError("ビジネス名は2〜100文字で入力してください。")
		}
		if strings.TrimSpace(draft.Category) == "" {
			return model.NewValidationError("カテゴリを選択してください。")
		}
		about := strings.TrimSpace(draft.About)
		if len(about) < 50 || len(about) > 2000 {
			return model.NewValidationError("ビジネス紹介文は50〜2000文字で入力してください。")
		}
		if abn := strings.ReplaceAll(draft.ABN, " ", ""); abn != "" && !abnPattern.MatchString(abn) {
			return model.NewValidationError("ABNは11桁の数字で入力してください。")
		}
		if len(strings.TrimSpace(draft.TradingName)) > 100 {
			return model.NewValidationError("屋号は100文字以内で入力してください。")
		}
		if draft.YearFounded != nil {
			year := *draft.YearFounded
			if year < 1800 || year > time.Now().Year() {
				return model.NewValidationError(fmt.Sprintf("創業年は1800〜%dの範囲で入力してください。", time.Now().Year()))
			}
		}
	case StepServices:
		named := 0
		for _, svc := range draft.Services {
			if len(strings.TrimSpace(svc.Name)) >= 2 {
				named++
			}
		}
		if named < minServiceCount {
			return model.NewValidationError(fmt.Sprintf("サービスを%d件以上登録してください。", minServiceCount))
		}
		if len(draft.Services) > maxServiceCount {
			return model.NewValidationError(fmt.Sprintf("サービスは%d件以内で登録してください。", maxServiceCount))
		}
	case StepLocations:
		named := 0
		for _, area := range draft.ServiceAreas {
			if strings.TrimSpace(area.Name) != "" {
				named++
			}
		}
		if named < 1 {
			return model.NewValidationError("対応エリアを1件以上登録してください。")
		}
	case StepReview:
		// 確認ステップ自体の検証項目はない
	default:
		return model.NewInvalidStepError(stepID)
	}
	return nil
}
