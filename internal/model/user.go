// Package model はドメインモデルを定義する。
package model

import "time"

// PlanType はサブスクリプションプランの階層を表す。
type PlanType string

const (
	PlanFree     PlanType = "free"
	PlanStarter  PlanType = "starter"
	PlanBusiness PlanType = "business"
)

// IsValid はプラン階層として有効な値かを返す。
func (p PlanType) IsValid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanBusiness:
		return true
	}
	return false
}

// User はサービス利用ユーザーを表す。
// 外部IdPのsubject ID（ClerkID）で一意に紐付く。
// 行はIdPのwebhookイベント（user.created/updated/deleted）で同期される。
type User struct {
	ID        string
	ClerkID   string
	Email     string
	FullName  string
	Role      string
	PlanType  *PlanType // プラン未選択の間はnil
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin は管理者ロールかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
