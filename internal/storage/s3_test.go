package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hitoshi/tradesite/internal/model"
)

// mockPresigner はテスト用のputPresigner実装。
type mockPresigner struct {
	presignFunc func(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

func (m *mockPresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return m.presignFunc(ctx, in, optFns...)
}

// TestPresignUpload_Success はキー形式とパラメータを検証する。
func TestPresignUpload_Success(t *testing.T) {
	var gotInput *s3.PutObjectInput
	uploader := &S3Uploader{
		bucket: "tradesite-images",
		presigner: &mockPresigner{
			presignFunc: func(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
				gotInput = in
				return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/presigned"}, nil
			},
		},
	}

	target, err := uploader.PresignUpload(context.Background(), "b-1", "Photo.JPG")
	if err != nil {
		t.Fatalf("PresignUpload returned error: %v", err)
	}

	if target.UploadURL != "https://s3.example.com/presigned" {
		t.Errorf("UploadURL = %q", target.UploadURL)
	}
	if !strings.HasPrefix(target.Key, "businesses/b-1/") || !strings.HasSuffix(target.Key, ".jpg") {
		t.Errorf("Key = %q, want businesses/b-1/<uuid>.jpg", target.Key)
	}
	if target.ExpiresAt.IsZero() {
		t.Error("ExpiresAt should be set")
	}

	if *gotInput.Bucket != "tradesite-images" {
		t.Errorf("Bucket = %q", *gotInput.Bucket)
	}
	if *gotInput.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q, want image/jpeg", *gotInput.ContentType)
	}
	if *gotInput.Key != target.Key {
		t.Errorf("input key %q != target key %q", *gotInput.Key, target.Key)
	}
}

// TestPresignUpload_RejectsNonImage は画像以外の拡張子の拒否を検証する。
func TestPresignUpload_RejectsNonImage(t *testing.T) {
	uploader := &S3Uploader{
		bucket: "tradesite-images",
		presigner: &mockPresigner{
			presignFunc: func(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
				t.Fatal("presign should not be called for rejected files")
				return nil, nil
			},
		},
	}

	for _, filename := range []string{"script.exe", "page.html", "noext", "archive.tar.gz"} {
		_, err := uploader.PresignUpload(context.Background(), "b-1", filename)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
			t.Errorf("file %q: expected VALIDATION_FAILED, got %v", filename, err)
		}
	}
}

// TestPresignUpload_UpstreamError はS3エラーの伝播を検証する。
func TestPresignUpload_UpstreamError(t *testing.T) {
	uploader := &S3Uploader{
		bucket: "tradesite-images",
		presigner: &mockPresigner{
			presignFunc: func(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
				return nil, errors.New("access denied")
			},
		},
	}

	if _, err := uploader.PresignUpload(context.Background(), "b-1", "photo.png"); err == nil {
		t.Fatal("expected error from presign failure")
	}
}
