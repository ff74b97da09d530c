// Package rawmail fetches raw MIME messages that the inbound mail pipeline
// parks in object storage when the webhook payload has no inline body.
package rawmail

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"spike_backend/platform/logger"
)

// Config carries the object-store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// Store reads and disposes of raw messages in a MinIO/S3 bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	log    *logger.Logger
}

func NewStore(cfg Config, log *logger.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, log: log}, nil
}

// FetchText loads the raw message at the given key and returns its plain-text
// body. After a successful read the object is deleted best-effort.
func (s *Store) FetchText(ctx context.Context, key string) (string, error) {
	objectKey := path.Join(s.prefix, key)

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get raw message %s: %w", objectKey, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("failed to read raw message %s: %w", objectKey, err)
	}

	text, err := extractText(raw)
	if err != nil {
		return "", err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		s.log.Warn("failed to delete raw message after read", "key", objectKey, "error", err)
	}
	return text, nil
}

// extractText pulls the first text/plain part out of a raw RFC 5322 message.
// A non-multipart message returns its whole body.
func extractText(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to parse raw message: %w", err)
	}

	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to walk message parts: %w", err)
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if partType == "text/plain" {
			return decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		}
	}
	return "", nil
}

func decodeBody(r io.Reader, encoding string) (string, error) {
	if strings.EqualFold(encoding, "quoted-printable") {
		r = quotedprintable.NewReader(r)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return string(body), nil
}
