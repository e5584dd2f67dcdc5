// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/tradesite/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByClerkID は外部IdPのsubject IDでユーザーを取得する。見つからない場合はnilを返す。
	FindByClerkID(ctx context.Context, clerkID string) (*model.User, error)

	// Upsert はwebhookイベントの内容でユーザー行を冪等にUPSERTする。
	// 既存行にはemail/full_nameの更新とlast_loginのスタンプを行う。
	Upsert(ctx context.Context, clerkID, email, fullName string) (*model.User, error)

	// UpdatePlan はユーザーと（存在すれば）ビジネスのプラン階層を
	// 同一トランザクションで更新する。
	UpdatePlan(ctx context.Context, clerkID string, plan model.PlanType) error

	// DeleteByClerkID は指定subject IDのユーザーを削除する。
	// 関連するbusinessesはCASCADE削除される。
	DeleteByClerkID(ctx context.Context, clerkID string) error
}

// BusinessRepository はビジネス（テナント）データの永続化インターフェース。
//
// services / service_areas / images / keywords のコレクションはビジネス行の
// JSONB列に格納される。Mutate系メソッドはSELECT ... FOR UPDATEを含む
// トランザクション内でread-modify-writeを行い、コレクション全体の
// last-write-wins競合を防ぐ。
type BusinessRepository interface {
	// FindByID は指定IDのビジネスを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Business, error)

	// FindOwned は所有者のsubject IDとビジネスIDの結合で取得する。
	// 存在しない場合も所有者が異なる場合もnilを返す。
	FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error)

	// FindByOwnerClerkID は所有者のsubject IDでビジネスを取得する。見つからない場合はnilを返す。
	FindByOwnerClerkID(ctx context.Context, clerkID string) (*model.Business, error)

	// FindBySlug はスラグでビジネスを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Business, error)

	// Create はビジネスを作成する。
	Create(ctx context.Context, b *model.Business) error

	// UpdateFields はnilでないフィールドのみを部分更新する。
	UpdateFields(ctx context.Context, id string, in BusinessFieldsUpdate) error

	// UpdateContact は連絡先（email/phone/mobile）を上書きする。
	UpdateContact(ctx context.Context, id, email, phone, mobile string) error

	// MutateServices はservicesコレクションをトランザクション内で変換する。
	MutateServices(ctx context.Context, id string, fn func([]model.Service) ([]model.Service, error)) error

	// MutateServiceAreas はservice_areasコレクションをトランザクション内で変換する。
	MutateServiceAreas(ctx context.Context, id string, fn func([]model.ServiceArea) ([]model.ServiceArea, error)) error

	// MutateImages はimagesコレクションをトランザクション内で変換する。
	MutateImages(ctx context.Context, id string, fn func([]model.BusinessImage) ([]model.BusinessImage, error)) error

	// MutateKeywords はkeywordsコレクションをトランザクション内で変換する。
	MutateKeywords(ctx context.Context, id string, fn func([]string) ([]string, error)) error

	// MutateSiteContent はsite_contentブロブをトランザクション内で変換する。
	MutateSiteContent(ctx context.Context, id string, fn func(map[string]any) (map[string]any, error)) error

	// UpdateImageURL はlogoまたはhero_imageのURLを更新する。
	UpdateImageURL(ctx context.Context, id, kind, url string) error

	// TryIncrementAIGenerations はカウンタがlimit未満の場合のみ1増やす。
	// 単一の条件付きUPDATEで実行され、成功したかどうかを返す。
	TryIncrementAIGenerations(ctx context.Context, id string, limit int) (bool, error)

	// DecrementAIGenerations はカウンタを1減らす（0未満にはならない）。
	// 生成失敗時の予約解放にのみ使用する。
	DecrementAIGenerations(ctx context.Context, id string) error

	// ResetAIUsage はカウンタを0に戻し、期間開始を現在時刻にする。
	ResetAIUsage(ctx context.Context, id string) error

	// SetDomain はカスタムドメインと新しい検証トークンを設定し、検証状態をクリアする。
	SetDomain(ctx context.Context, id, domain, token string) error

	// ClearDomain はドメイン関連フィールドを1文でまとめてクリアする。
	ClearDomain(ctx context.Context, id string) error

	// MarkDomainVerified はドメインを検証済みとしてマークする。
	MarkDomainVerified(ctx context.Context, id, method string) error
}

// BusinessFieldsUpdate はビジネス基本情報の部分更新内容。
// nilのフィールドは変更しない。
type BusinessFieldsUpdate struct {
	BusinessName *string
	TradingName  *string
	ABN          *string
	Category     *string
	Tagline      *string
	About        *string
	YearFounded  *int
}

// TemplateRepository はテンプレートカタログと選択状態の永続化インターフェース。
type TemplateRepository interface {
	// ListActive はアクティブなテンプレートを名前順で返す。
	ListActive(ctx context.Context) ([]*model.Template, error)

	// FindBySlug はスラグでテンプレートを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Template, error)

	// FindByID は指定IDのテンプレートを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Template, error)

	// FindActiveForBusiness はビジネスのアクティブなBusinessTemplateを返す。
	// 無い場合はnilを返す。
	FindActiveForBusiness(ctx context.Context, businessID string) (*model.BusinessTemplate, error)

	// SelectTemplate は既存のアクティブ行を非アクティブ化し、指定テンプレートを
	// 再アクティブ化または新規作成する。全体を1トランザクションで実行する。
	SelectTemplate(ctx context.Context, businessID, templateID string) error

	// UpdateCustomizations はBusinessTemplateのカスタマイズブロブを上書きする。
	UpdateCustomizations(ctx context.Context, businessTemplateID string, c model.TemplateCustomizations) error
}
