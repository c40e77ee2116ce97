package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryBucket keeps objects in a map. It backs local development and
// tests.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

func NewMemoryBucket(baseURL string) *MemoryBucket {
	if baseURL == "" {
		baseURL = "memory://documents"
	}
	return &MemoryBucket{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (b *MemoryBucket) Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read upload %s: %w", path, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[path]; ok && opts.NoOverwrite {
		return fmt.Errorf("upload %s: %w", path, ErrObjectExists)
	}
	b.objects[path] = memoryObject{data: buf.Bytes(), contentType: opts.ContentType}
	return nil
}

func (b *MemoryBucket) Download(ctx context.Context, path string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[path]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", path, ErrObjectNotFound)
	}
	return bytes.Clone(obj.data), nil
}

func (b *MemoryBucket) Delete(ctx context.Context, paths ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range paths {
		delete(b.objects, p)
	}
	return nil
}

func (b *MemoryBucket) PublicURL(path string) string {
	return b.baseURL + "/" + path
}

// Len reports how many objects are stored.
func (b *MemoryBucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
