package storage

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	tenant := uuid.MustParse("7b0c6a56-1c35-4d6e-9a57-3f1d0b7a2c11")
	now := time.UnixMilli(1718000000123)

	p, err := ObjectPath(tenant, "certificate", "Scan.PDF", now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^7b0c6a56-1c35-4d6e-9a57-3f1d0b7a2c11/certificate/1718000000123-[0-9a-f]{8}\.pdf$`), p)
	assert.Equal(t, tenant.String(), TenantOf(p))

	noExt, err := ObjectPath(tenant, "other", "README", now)
	require.NoError(t, err)
	assert.False(t, strings.Contains(noExt[strings.LastIndex(noExt, "/"):], "."))

	other, err := ObjectPath(tenant, "certificate", "Scan.PDF", now)
	require.NoError(t, err)
	assert.NotEqual(t, p, other)
}

func TestMemoryBucket(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBucket("https://files.example.com/")

	require.NoError(t, b.Upload(ctx, "t/c/a.pdf", strings.NewReader("hello"), UploadOptions{ContentType: "application/pdf", NoOverwrite: true}))

	err := b.Upload(ctx, "t/c/a.pdf", strings.NewReader("again"), UploadOptions{NoOverwrite: true})
	assert.ErrorIs(t, err, ErrObjectExists)

	data, err := b.Download(ctx, "t/c/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "https://files.example.com/t/c/a.pdf", b.PublicURL("t/c/a.pdf"))

	require.NoError(t, b.Delete(ctx, "t/c/a.pdf", "t/c/missing.pdf"))
	_, err = b.Download(ctx, "t/c/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 0, b.Len())
}
