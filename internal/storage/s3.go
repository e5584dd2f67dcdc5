// Package storage は画像アップロード用のpresigned URL発行を提供する。
//
// クライアントは発行されたURLへ直接PUTする。サーバーは画像本体を
// 中継しない。S3設定が無い場合、この機能は無効になる。
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/hitoshi/tradesite/internal/model"
)

const uploadExpiry = 15 * time.Minute

// allowedExtensions はアップロードを許可する画像拡張子。
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// UploadTarget はpresigned PUTの発行結果。
type UploadTarget struct {
	UploadURL string    `json:"upload_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Uploader はアップロードURL発行のインターフェース。
type Uploader interface {
	// PresignUpload はビジネス配下のキーに対するpresigned PUT URLを発行する。
	PresignUpload(ctx context.Context, businessID, filename string) (*UploadTarget, error)
}

// putPresigner はs3.PresignClientのうち使用するメソッドの部分集合。
// テストでのモック差し替え用。
type putPresigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader はUploaderのS3実装。
type S3Uploader struct {
	presigner putPresigner
	bucket    string
}

// Options はS3接続設定。
type Options struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string // MinIO等の互換ストレージ用。空の場合はAWSのデフォルト
}

// NewS3Uploader はS3クライアントを構築してUploaderを生成する。
func NewS3Uploader(ctx context.Context, opts Options) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("S3設定の読み込みに失敗しました: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		presigner: s3.NewPresignClient(client),
		bucket:    opts.Bucket,
	}, nil
}

// PresignUpload はビジネス配下のキーに対するpresigned PUT URLを発行する。
// キーは businesses/<businessID>/<uuid><ext> 形式。
func (u *S3Uploader) PresignUpload(ctx context.Context, businessID, filename string) (*UploadTarget, error) {
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, model.NewValidationError("アップロードできるのは画像ファイル（jpg/png/webp/gif/svg）のみです。")
	}

	key := fmt.Sprintf("businesses/%s/%s%s", businessID, uuid.NewString(), ext)

	req, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("アップロードURLの発行に失敗しました: %w", err)
	}

	return &UploadTarget{
		UploadURL: req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(uploadExpiry),
	}, nil
}

// compile-time interface check
var _ Uploader = (*S3Uploader)(nil)
