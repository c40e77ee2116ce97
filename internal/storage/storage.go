// Package storage stores document files in a bucket namespaced by tenant and
// category.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
)

type UploadOptions struct {
	ContentType  string
	CacheControl string
	// NoOverwrite makes Upload fail with ErrObjectExists instead of
	// replacing an existing object.
	NoOverwrite bool
}

// Bucket is the file storage contract. Delete ignores paths that do not
// exist.
type Bucket interface {
	Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) error
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, paths ...string) error
	PublicURL(path string) string
}

// ObjectPath builds {tenant}/{category}/{unixMillis}-{8 hex}.{ext}. The
// extension comes from filename, lowercased; files without one get none.
func ObjectPath(tenantID uuid.UUID, category, filename string, now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("random object suffix: %w", err)
	}
	name := fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(b[:]))
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")); ext != "" && !strings.ContainsAny(ext, `/\`) {
		name += "." + ext
	}
	return tenantID.String() + "/" + category + "/" + name, nil
}

// TenantOf returns the tenant prefix of an object path.
func TenantOf(objectPath string) string {
	tenant, _, _ := strings.Cut(objectPath, "/")
	return tenant
}
