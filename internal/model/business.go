package model

import "time"

// BusinessType は事業形態を表す。
type BusinessType string

const (
	BusinessTypeSoleTrader BusinessType = "sole_trader"
	BusinessTypeCompany    BusinessType = "company"
)

// IsValid は事業形態として有効な値かを返す。
func (t BusinessType) IsValid() bool {
	return t == BusinessTypeSoleTrader || t == BusinessTypeCompany
}

// Business はテナント（1顧客のサイト）を表す。
// services / service_areas / images / keywords はビジネス行のJSONB列に
// サブレコードの順序付きリストとして埋め込まれる。
type Business struct {
	ID           string
	UserID       string
	BusinessName string
	TradingName  string
	Slug         string
	ABN          string
	Category     string
	BusinessType BusinessType
	YearFounded  *int
	Tagline      string
	About        string

	Services     []Service
	ServiceAreas []ServiceArea
	Images       []BusinessImage
	Keywords     []string
	SiteContent  map[string]any

	Logo      string
	HeroImage string
	Email     string
	Phone     string
	Mobile    string

	// カスタムドメインと所有権検証の状態
	Domain               string
	DNSVerificationToken string
	Verified             bool
	VerifiedDate         *time.Time
	VerifiedMethod       string

	PlanType PlanType

	// AI生成クォータ。期間内で単調非減少。
	AIGenerationsCount int
	AIPeriodStart      time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service はビジネスが提供するサービスのサブレコード。
type Service struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	PriceType   string   `json:"price_type,omitempty"` // fixed / hourly / quote
	IsFeatured  bool     `json:"is_featured,omitempty"`
}

// ServiceArea は対応エリアのサブレコード。
type ServiceArea struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Suburb           string `json:"suburb,omitempty"`
	Postcode         string `json:"postcode,omitempty"`
	PlaceID          string `json:"place_id,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
}

// BusinessImage はギャラリー等の画像サブレコード。
type BusinessImage struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Alt  string `json:"alt,omitempty"`
	Type string `json:"type"` // gallery / hero / logo / favicon
}

// AIUsage はAI生成クォータの読み取り専用プロジェクション。
type AIUsage struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
	PlanType    PlanType  `json:"plan_type"`
}
