// Package auth はIdPが発行するJWTのJWKS検証を提供する。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const defaultLeeway = 30 * time.Second

// Claims は検証済みトークンから抽出した情報。
type Claims struct {
	// Subject はIdP側のユーザーID。usersテーブルのclerk_idに対応する。
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	Raw       map[string]any
}

// TokenVerifier はBearerトークンの検証インターフェース。
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// Verifier はJWKSエンドポイントに対してRS256系JWTを検証する。
type Verifier struct {
	issuer  string
	keyfunc keyfunc.Keyfunc
	parser  *jwt.Parser
}

// NewVerifier はVerifierを生成する。jwksURLが空の場合はissuerから導出する。
// 初回のJWKS取得に失敗した場合はエラーを返す。
func NewVerifier(issuer, jwksURL string) (*Verifier, error) {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("issuerが設定されていません")
	}
	if jwksURL == "" {
		jwksURL = strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("JWKSの初期化に失敗しました: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodRS384.Name,
			jwt.SigningMethodRS512.Name,
		}),
	)

	return &Verifier{
		issuer:  issuer,
		keyfunc: keyProvider,
		parser:  parser,
	}, nil
}

// Verify はトークンを検証し、クレームを抽出して返す。
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc.Keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("無効なトークンです")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("無効なトークンクレームです")
	}

	claims := &Claims{
		Subject:   readString(mapClaims, "sub"),
		Issuer:    readString(mapClaims, "iss"),
		ExpiresAt: readExpiry(mapClaims["exp"]),
		Raw:       mapClaims,
	}
	if claims.Subject == "" {
		return nil, errors.New("トークンにsubクレームがありません")
	}
	return claims, nil
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func readExpiry(raw any) time.Time {
	if f, ok := raw.(float64); ok {
		return time.Unix(int64(f), 0)
	}
	return time.Time{}
}

// compile-time interface check
var _ TokenVerifier = (*Verifier)(nil)
