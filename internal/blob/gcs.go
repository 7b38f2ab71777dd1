package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"
)

// GCSStore uploads attachments to a Cloud Storage bucket and returns a
// token-gated download URL, so references work in mail clients and the
// admin dashboard without signed-URL plumbing.
type GCSStore struct {
	svc    *gstorage.Service
	bucket string
	prefix string
}

// NewGCSStore resolves service-account credentials the same way the
// sheets client does: GOOGLE_SERVICE_ACCOUNT_JSON, then
// GOOGLE_SERVICE_ACCOUNT_FILE, then GOOGLE_APPLICATION_CREDENTIALS.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing storage bucket")
	}

	credentialsJSON, err := resolveCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gstorage.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gstorage.DevstorageReadWriteScope))
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}

	return &GCSStore{svc: svc, bucket: bucket, prefix: prefix}, nil
}

func resolveCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return raw, nil
}

func (s *GCSStore) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	token := uuid.New().String()
	objectName := path.Join(s.prefix, uuid.New().String()+"_"+path.Base(filename))

	obj := &gstorage.Object{
		Name: objectName,
		Metadata: map[string]string{
			"firebaseStorageDownloadTokens": token,
		},
	}

	_, err := s.svc.Objects.
		Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}

	slog.InfoContext(ctx, "Uploaded attachment",
		"bucket", s.bucket,
		"object", objectName,
		"size", len(data))

	return downloadURL(s.bucket, objectName, token), nil
}

func downloadURL(bucket, object, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(object), token)
}
