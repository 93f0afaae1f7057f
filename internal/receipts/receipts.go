// Package receipts stores expense receipt images in S3-compatible storage.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

var (
	ErrDisabled           = errors.New("receipt storage is not configured")
	ErrUnsupportedContent = errors.New("unsupported receipt content type")
)

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"application/pdf": ".pdf",
}

// Config selects the bucket. Endpoint is set for non-AWS providers such as
// Supabase Storage or MinIO, which also need path-style addressing.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	PublicURL string
	AccessKey string
	SecretKey string
}

// Uploader writes receipts to a bucket.
type Uploader struct {
	api       s3manageriface.UploaderAPI
	bucket    string
	publicURL string
}

// New creates an uploader from cfg.
func New(cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrDisabled
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	return NewWithAPI(s3manager.NewUploader(sess), cfg.Bucket, publicBase(cfg)), nil
}

// NewWithAPI wraps an existing upload client; publicURL is the base the
// object key is appended to.
func NewWithAPI(api s3manageriface.UploaderAPI, bucket, publicURL string) *Uploader {
	return &Uploader{api: api, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

func publicBase(cfg Config) string {
	switch {
	case cfg.PublicURL != "":
		return cfg.PublicURL
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// Key is the object key for an expense receipt.
func Key(userID, expenseID, contentType string) (string, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContent, contentType)
	}
	return path.Join("receipts", userID, expenseID+ext), nil
}

// Upload stores body and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, userID, expenseID, contentType string, body io.Reader) (string, error) {
	key, err := Key(userID, expenseID, contentType)
	if err != nil {
		return "", err
	}
	_, err = u.api.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload receipt %s: %w", key, err)
	}
	return u.publicURL + "/" + key, nil
}
