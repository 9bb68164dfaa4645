package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
)

// Store saves an object under key and returns the URL clients fetch it from.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage sniffs the first bytes of an upload. Only common raster
// formats are accepted.
func DetectImage(head []byte) (contentType, ext string, err error) {
	contentType = http.DetectContentType(head)
	ext, ok := imageExt[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}
	return contentType, ext, nil
}

// AvatarKey names a new avatar object for the user. Every upload gets a
// fresh key so CDNs and browsers never serve a stale image.
func AvatarKey(userID uuid.UUID, ext string) string {
	return fmt.Sprintf("avatars/%s/%d%s", userID, time.Now().UnixNano(), ext)
}

// S3Store uploads to a bucket that is publicly readable by bucket policy.
type S3Store struct {
	uploader *s3manager.Uploader
	bucket   string
	region   string
}

func NewS3Store(region, accessKeyID, secretKey, bucket string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKeyID, secretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Store{
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
		region:   region,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// LocalStore writes under Dir; the router serves Dir at /uploads.
type LocalStore struct {
	Dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	dst := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}

	return s.baseURL + "/uploads/" + clean, nil
}
