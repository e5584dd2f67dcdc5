package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tradesite/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, clerk_id, email, COALESCE(full_name, ''), role, plan_type, last_login, created_at, updated_at`

// scanUser は1行をmodel.Userに読み取る。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var planType sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID, &user.ClerkID, &user.Email, &user.FullName, &user.Role,
		&planType, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if planType.Valid {
		p := model.PlanType(planType.String)
		user.PlanType = &p
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

// FindByClerkID は外部IdPのsubject IDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE clerk_id = $1`,
		clerkID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// Upsert はwebhookイベントの内容でユーザー行を冪等にUPSERTする。
func (r *PostgresUserRepo) Upsert(ctx context.Context, clerkID, email, fullName string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (clerk_id, email, full_name, role, plan_type)
		 VALUES ($1, $2, NULLIF($3, ''), 'user', NULL)
		 ON CONFLICT (clerk_id) DO UPDATE
		 SET email = EXCLUDED.email,
		     full_name = EXCLUDED.full_name,
		     last_login = now(),
		     updated_at = now()
		 RETURNING `+userColumns,
		clerkID, email, fullName,
	))
	if err != nil {
		return nil, fmt.Errorf("ユーザーのUPSERTに失敗しました: %w", err)
	}
	return user, nil
}

// UpdatePlan はユーザーと（存在すれば）ビジネスのプラン階層を同一トランザクションで更新する。
func (r *PostgresUserRepo) UpdatePlan(ctx context.Context, clerkID string, plan model.PlanType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET plan_type = $2, updated_at = now() WHERE clerk_id = $1`,
		clerkID, string(plan),
	)
	if err != nil {
		return fmt.Errorf("プランの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ユーザーが見つかりません: %s", clerkID)
	}

	// AIクォータの判定はビジネス行のplan_typeを読むため、こちらも揃える
	_, err = tx.ExecContext(ctx,
		`UPDATE businesses SET plan_type = $2, updated_at = now()
		 WHERE user_id = (SELECT id FROM users WHERE clerk_id = $1)`,
		clerkID, string(plan),
	)
	if err != nil {
		return fmt.Errorf("ビジネスのプラン更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByClerkID は指定subject IDのユーザーを削除する。
// 関連するbusinessesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByClerkID(ctx context.Context, clerkID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE clerk_id = $1`,
		clerkID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ユーザーが見つかりません: %s", clerkID)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
