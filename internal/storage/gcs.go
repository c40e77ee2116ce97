package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GCSBucket struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSBucket uses credentialsJSON when set and application default
// credentials otherwise. baseURL overrides the public URL prefix, e.g. for a
// CDN in front of the bucket.
func NewGCSBucket(ctx context.Context, bucket, credentialsJSON, baseURL string) (*GCSBucket, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSBucket{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

func (b *GCSBucket) Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) error {
	obj := b.client.Bucket(b.bucket).Object(path)
	if opts.NoOverwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.CacheControl = opts.CacheControl

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("upload %s: %w", path, ErrObjectExists)
		}
		return fmt.Errorf("close object %s: %w", path, err)
	}
	return nil
}

func (b *GCSBucket) Download(ctx context.Context, path string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("download %s: %w", path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open object %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}

func (b *GCSBucket) Delete(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		err := b.client.Bucket(b.bucket).Object(p).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete object %s: %w", p, err)
		}
	}
	return nil
}

func (b *GCSBucket) PublicURL(path string) string {
	return b.baseURL + "/" + path
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
