package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/tradesite/internal/model"
)

// PostgresTemplateRepo はPostgreSQLを使用したテンプレートリポジトリ。
type PostgresTemplateRepo struct {
	db *sql.DB
}

// NewPostgresTemplateRepo はPostgresTemplateRepoを生成する。
func NewPostgresTemplateRepo(db *sql.DB) *PostgresTemplateRepo {
	return &PostgresTemplateRepo{db: db}
}

const templateColumns = `id, slug, name, description, plan_level, sections, status, created_at`

// scanTemplate は1行をmodel.Templateに読み取る。
func scanTemplate(row interface{ Scan(...any) error }) (*model.Template, error) {
	t := &model.Template{}
	var sectionsJSON []byte
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.Description, &t.PlanLevel,
		&sectionsJSON, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sectionsJSON, &t.Sections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
	}
	return t, nil
}

// ListActive はアクティブなテンプレートを名前順で返す。
func (r *PostgresTemplateRepo) ListActive(ctx context.Context) ([]*model.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE status = 'active' ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("テンプレート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var templates []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("テンプレートの読み取りに失敗しました: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return templates, nil
}

func (r *PostgresTemplateRepo) findOne(ctx context.Context, where string, arg any) (*model.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates `+where, arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("テンプレートの取得に失敗しました: %w", err)
	}
	return t, nil
}

// FindBySlug はスラグでテンプレートを取得する。見つからない場合はnilを返す。
func (r *PostgresTemplateRepo) FindBySlug(ctx context.Context, slug string) (*model.Template, error) {
	return r.findOne(ctx, `WHERE slug = $1`, slug)
}

// FindByID は指定IDのテンプレートを取得する。見つからない場合はnilを返す。
func (r *PostgresTemplateRepo) FindByID(ctx context.Context, id string) (*model.Template, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindActiveForBusiness はビジネスのアクティブなBusinessTemplateを返す。
// 無い場合はnilを返す。
func (r *PostgresTemplateRepo) FindActiveForBusiness(ctx context.Context, businessID string) (*model.BusinessTemplate, error) {
	bt := &model.BusinessTemplate{}
	var customizationsJSON []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, business_id, template_id, is_active, customizations, created_at, updated_at
		 FROM business_templates
		 WHERE business_id = $1 AND is_active`,
		businessID,
	).Scan(&bt.ID, &bt.BusinessID, &bt.TemplateID, &bt.IsActive, &customizationsJSON, &bt.CreatedAt, &bt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブテンプレートの取得に失敗しました: %w", err)
	}
	if err := json.Unmarshal(customizationsJSON, &bt.Customizations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customizations: %w", err)
	}
	return bt, nil
}

// SelectTemplate は既存のアクティブ行を非アクティブ化し、指定テンプレートを
// 再アクティブ化または新規作成する。全体を1トランザクションで実行し、
// 部分唯一インデックスが「アクティブは最大1つ」を保証する。
func (r *PostgresTemplateRepo) SelectTemplate(ctx context.Context, businessID, templateID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE business_templates SET is_active = false, updated_at = now()
		 WHERE business_id = $1 AND is_active`,
		businessID,
	)
	if err != nil {
		return fmt.Errorf("アクティブテンプレートの解除に失敗しました: %w", err)
	}

	// 過去に選択済みの行があればカスタマイズを保持したまま再アクティブ化する
	_, err = tx.ExecContext(ctx,
		`INSERT INTO business_templates (business_id, template_id, is_active)
		 VALUES ($1, $2, true)
		 ON CONFLICT (business_id, template_id) DO UPDATE
		 SET is_active = true, updated_at = now()`,
		businessID, templateID,
	)
	if err != nil {
		return fmt.Errorf("テンプレートの選択に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateCustomizations はBusinessTemplateのカスタマイズブロブを上書きする。
func (r *PostgresTemplateRepo) UpdateCustomizations(ctx context.Context, businessTemplateID string, c model.TemplateCustomizations) error {
	encoded, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal customizations: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE business_templates SET customizations = $2, updated_at = now() WHERE id = $1`,
		businessTemplateID, encoded,
	)
	if err != nil {
		return fmt.Errorf("カスタマイズの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("テンプレート選択が見つかりません: %s", businessTemplateID)
	}
	return nil
}

// compile-time interface check
var _ TemplateRepository = (*PostgresTemplateRepo)(nil)
