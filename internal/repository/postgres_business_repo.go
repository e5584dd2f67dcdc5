package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/tradesite/internal/model"
)

// PostgresBusinessRepo はPostgreSQLを使用したビジネスリポジトリ。
type PostgresBusinessRepo struct {
	db *sql.DB
}

// NewPostgresBusinessRepo はPostgresBusinessRepoを生成する。
func NewPostgresBusinessRepo(db *sql.DB) *PostgresBusinessRepo {
	return &PostgresBusinessRepo{db: db}
}

const businessColumns = `b.id, b.user_id, b.business_name, b.trading_name, b.slug, b.abn,
	b.category, b.business_type, b.year_founded, b.tagline, b.about,
	b.services, b.service_areas, b.images, b.keywords, b.site_content,
	b.logo, b.hero_image, b.email, b.phone, b.mobile,
	b.domain, b.dns_verification_token, b.verified, b.verified_date, b.verified_method,
	b.plan_type, b.ai_generations_count, b.ai_period_start,
	b.created_at, b.updated_at`

// scanBusiness は1行をmodel.Businessに読み取る。JSONB列はここでデコードする。
func scanBusiness(row interface{ Scan(...any) error }) (*model.Business, error) {
	b := &model.Business{}
	var yearFounded sql.NullInt64
	var verifiedDate sql.NullTime
	var servicesJSON, areasJSON, imagesJSON, keywordsJSON, siteContentJSON []byte

	err := row.Scan(
		&b.ID, &b.UserID, &b.BusinessName, &b.TradingName, &b.Slug, &b.ABN,
		&b.Category, &b.BusinessType, &yearFounded, &b.Tagline, &b.About,
		&servicesJSON, &areasJSON, &imagesJSON, &keywordsJSON, &siteContentJSON,
		&b.Logo, &b.HeroImage, &b.Email, &b.Phone, &b.Mobile,
		&b.Domain, &b.DNSVerificationToken, &b.Verified, &verifiedDate, &b.VerifiedMethod,
		&b.PlanType, &b.AIGenerationsCount, &b.AIPeriodStart,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if yearFounded.Valid {
		y := int(yearFounded.Int64)
		b.YearFounded = &y
	}
	if verifiedDate.Valid {
		t := verifiedDate.Time
		b.VerifiedDate = &t
	}

	if err := json.Unmarshal(servicesJSON, &b.Services); err != nil {
		return nil, fmt.Errorf("failed to unmarshal services: %w", err)
	}
	if err := json.Unmarshal(areasJSON, &b.ServiceAreas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service_areas: %w", err)
	}
	if err := json.Unmarshal(imagesJSON, &b.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(keywordsJSON, &b.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal(siteContentJSON, &b.SiteContent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal site_content: %w", err)
	}
	return b, nil
}

func (r *PostgresBusinessRepo) findOne(ctx context.Context, where string, args ...any) (*model.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses b `+where, args...,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	return b, nil
}

// FindByID は指定IDのビジネスを取得する。見つからない場合はnilを返す。
func (r *PostgresBusinessRepo) FindByID(ctx context.Context, id string) (*model.Business, error) {
	return r.findOne(ctx, `WHERE b.id = $1`, id)
}

// FindOwned は所有者のsubject IDとビジネスIDの結合で取得する。
// 存在しない場合も所有者が異なる場合もnilを返す。
func (r *PostgresBusinessRepo) FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
	return r.findOne(ctx,
		`JOIN users u ON b.user_id = u.id WHERE b.id = $1 AND u.clerk_id = $2`,
		businessID, clerkID,
	)
}

// FindByOwnerClerkID は所有者のsubject IDでビジネスを取得する。見つからない場合はnilを返す。
func (r *PostgresBusinessRepo) FindByOwnerClerkID(ctx context.Context, clerkID string) (*model.Business, error) {
	return r.findOne(ctx,
		`JOIN users u ON b.user_id = u.id WHERE u.clerk_id = $1`,
		clerkID,
	)
}

// FindBySlug はスラグでビジネスを取得する。見つからない場合はnilを返す。
func (r *PostgresBusinessRepo) FindBySlug(ctx context.Context, slug string) (*model.Business, error) {
	return r.findOne(ctx, `WHERE b.slug = $1`, slug)
}

// Create はビジネスを作成する。生成されたIDとタイムスタンプをbに書き戻す。
func (r *PostgresBusinessRepo) Create(ctx context.Context, b *model.Business) error {
	servicesJSON, err := json.Marshal(b.Services)
	if err != nil {
		return fmt.Errorf("failed to marshal services: %w", err)
	}
	areasJSON, err := json.Marshal(b.ServiceAreas)
	if err != nil {
		return fmt.Errorf("failed to marshal service_areas: %w", err)
	}
	keywordsJSON, err := json.Marshal(b.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	var yearFounded sql.NullInt64
	if b.YearFounded != nil {
		yearFounded = sql.NullInt64{Int64: int64(*b.YearFounded), Valid: true}
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO businesses (
			user_id, business_name, trading_name, slug, abn, category,
			business_type, year_founded, tagline, about,
			services, service_areas, keywords,
			email, phone, mobile, plan_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`,
		b.UserID, b.BusinessName, b.TradingName, b.Slug, b.ABN, b.Category,
		string(b.BusinessType), yearFounded, b.Tagline, b.About,
		servicesJSON, areasJSON, keywordsJSON,
		b.Email, b.Phone, b.Mobile, string(b.PlanType),
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ビジネスの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateFields はnilでないフィールドのみを部分更新する。
func (r *PostgresBusinessRepo) UpdateFields(ctx context.Context, id string, in BusinessFieldsUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if in.BusinessName != nil {
		appendSet("business_name", *in.BusinessName)
	}
	if in.TradingName != nil {
		appendSet("trading_name", *in.TradingName)
	}
	if in.ABN != nil {
		appendSet("abn", *in.ABN)
	}
	if in.Category != nil {
		appendSet("category", *in.Category)
	}
	if in.Tagline != nil {
		appendSet("tagline", *in.Tagline)
	}
	if in.About != nil {
		appendSet("about", *in.About)
	}
	if in.YearFounded != nil {
		appendSet("year_founded", *in.YearFounded)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("ビジネスの更新に失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// UpdateContact は連絡先（email/phone/mobile）を上書きする。
func (r *PostgresBusinessRepo) UpdateContact(ctx context.Context, id, email, phone, mobile string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses SET email = $2, phone = $3, mobile = $4, updated_at = now() WHERE id = $1`,
		id, email, phone, mobile,
	)
	if err != nil {
		return fmt.Errorf("連絡先の更新に失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// mutateJSONColumn はSELECT ... FOR UPDATEを含むトランザクション内で
// JSONB列をread-modify-writeする。columnは呼び出し側の固定文字列のみ。
func (r *PostgresBusinessRepo) mutateJSONColumn(ctx context.Context, id, column string, mutate func(raw []byte) ([]byte, error)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT `+column+` FROM businesses WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("ビジネスが見つかりません: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to lock row: %w", err)
	}

	updated, err := mutate(raw)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE businesses SET `+column+` = $2, updated_at = now() WHERE id = $1`,
		id, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mutateCollection はJSONBのデコード/エンコードを挟んでmutateJSONColumnを呼ぶ。
func mutateCollection[T any](ctx context.Context, r *PostgresBusinessRepo, id, column string, fn func(T) (T, error)) error {
	return r.mutateJSONColumn(ctx, id, column, func(raw []byte) ([]byte, error) {
		var current T
		if err := json.Unmarshal(raw, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", column, err)
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", column, err)
		}
		return encoded, nil
	})
}

// MutateServices はservicesコレクションをトランザクション内で変換する。
func (r *PostgresBusinessRepo) MutateServices(ctx context.Context, id string, fn func([]model.Service) ([]model.Service, error)) error {
	return mutateCollection(ctx, r, id, "services", fn)
}

// MutateServiceAreas はservice_areasコレクションをトランザクション内で変換する。
func (r *PostgresBusinessRepo) MutateServiceAreas(ctx context.Context, id string, fn func([]model.ServiceArea) ([]model.ServiceArea, error)) error {
	return mutateCollection(ctx, r, id, "service_areas", fn)
}

// MutateImages はimagesコレクションをトランザクション内で変換する。
func (r *PostgresBusinessRepo) MutateImages(ctx context.Context, id string, fn func([]model.BusinessImage) ([]model.BusinessImage, error)) error {
	return mutateCollection(ctx, r, id, "images", fn)
}

// MutateKeywords はkeywordsコレクションをトランザクション内で変換する。
func (r *PostgresBusinessRepo) MutateKeywords(ctx context.Context, id string, fn func([]string) ([]string, error)) error {
	return mutateCollection(ctx, r, id, "keywords", fn)
}

// MutateSiteContent はsite_contentブロブをトランザクション内で変換する。
func (r *PostgresBusinessRepo) MutateSiteContent(ctx context.Context, id string, fn func(map[string]any) (map[string]any, error)) error {
	return mutateCollection(ctx, r, id, "site_content", fn)
}

// UpdateImageURL はlogoまたはhero_imageのURLを更新する。
func (r *PostgresBusinessRepo) UpdateImageURL(ctx context.Context, id, kind, url string) error {
	var column string
	switch kind {
	case "logo":
		column = "logo"
	case "hero_image":
		column = "hero_image"
	default:
		return fmt.Errorf("不明な画像種別です: %s", kind)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses SET `+column+` = $2, updated_at = now() WHERE id = $1`,
		id, url,
	)
	if err != nil {
		return fmt.Errorf("画像URLの更新に失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// TryIncrementAIGenerations はカウンタがlimit未満の場合のみ1増やす。
// 単一の条件付きUPDATEなので同時リクエストでも上限を超えない。
func (r *PostgresBusinessRepo) TryIncrementAIGenerations(ctx context.Context, id string, limit int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET ai_generations_count = ai_generations_count + 1, updated_at = now()
		 WHERE id = $1 AND ai_generations_count < $2`,
		id, limit,
	)
	if err != nil {
		return false, fmt.Errorf("AI生成カウンタの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// DecrementAIGenerations はカウンタを1減らす（0未満にはならない）。
// 生成失敗時の予約解放にのみ使用する。
func (r *PostgresBusinessRepo) DecrementAIGenerations(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET ai_generations_count = GREATEST(ai_generations_count - 1, 0), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("AI生成カウンタの返却に失敗しました: %w", err)
	}
	return nil
}

// ResetAIUsage はカウンタを0に戻し、期間開始を現在時刻にする。
func (r *PostgresBusinessRepo) ResetAIUsage(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET ai_generations_count = 0, ai_period_start = now(), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("AI使用量のリセットに失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// SetDomain はカスタムドメインと新しい検証トークンを設定し、検証状態をクリアする。
func (r *PostgresBusinessRepo) SetDomain(ctx context.Context, id, domain, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET domain = $2, dns_verification_token = $3,
		     verified = false, verified_date = NULL, verified_method = '',
		     updated_at = now()
		 WHERE id = $1`,
		id, domain, token,
	)
	if err != nil {
		return fmt.Errorf("ドメインの設定に失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// ClearDomain はドメイン関連フィールドをまとめてクリアする。
func (r *PostgresBusinessRepo) ClearDomain(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET domain = '', dns_verification_token = '',
		     verified = false, verified_date = NULL, verified_method = '',
		     updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ドメインのクリアに失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// MarkDomainVerified はドメインを検証済みとしてマークする。
func (r *PostgresBusinessRepo) MarkDomainVerified(ctx context.Context, id, method string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET verified = true, verified_date = now(), verified_method = $2, updated_at = now()
		 WHERE id = $1`,
		id, method,
	)
	if err != nil {
		return fmt.Errorf("ドメイン検証状態の更新に失敗しました: %w", err)
	}
	return checkOneRow(result)
}

// checkOneRow はUPDATE対象の行が存在したことを確認する。
func checkOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ビジネスが見つかりません")
	}
	return nil
}

// compile-time interface check
var _ BusinessRepository = (*PostgresBusinessRepo)(nil)
