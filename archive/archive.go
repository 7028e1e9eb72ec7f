package archive

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver keeps a verbatim copy of provider payloads for audit and replay.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

type Noop struct{}

func (Noop) Archive(context.Context, string, []byte) error { return nil }

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Archiver struct {
	uploader uploader
	bucket   string
}

func NewS3Archiver(ctx context.Context, bucket string) (*S3Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return &S3Archiver{uploader: manager.NewUploader(s3.NewFromConfig(cfg)), bucket: bucket}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

const maxKeyIDLength = 100

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// CallbackKey groups callbacks by day; the timestamp suffix keeps repeated deliveries apart.
// The id comes from the request body, so anything outside [A-Za-z0-9_-] is replaced.
func CallbackKey(checkoutRequestID string, at time.Time) string {
	id := unsafeKeyChars.ReplaceAllString(checkoutRequestID, "_")
	if len(id) > maxKeyIDLength {
		id = id[:maxKeyIDLength]
	}
	if id == "" {
		id = "unknown"
	}

	at = at.UTC()
	return fmt.Sprintf("mpesa-callbacks/%s/%s-%d.json", at.Format("2006/01/02"), id, at.UnixNano())
}
