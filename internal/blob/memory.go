package blob

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	public      bool
}

// Memory is an in-process Store used for local development and tests.
type Memory struct {
	mu      sync.RWMutex
	bucket  string
	baseURL string
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemory returns an empty bucket. baseURL prefixes public URLs.
func NewMemory(bucket, baseURL string) *Memory {
	if bucket == "" {
		bucket = "local"
	}
	return &Memory{bucket: bucket, baseURL: baseURL, objects: make(map[string]memoryObject), now: time.Now}
}

func (m *Memory) Bucket() string { return m.bucket }

func (m *Memory) Put(ctx context.Context, name, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *Memory) MakePublic(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[name]
	if !ok {
		return ErrNotFound
	}
	obj.public = true
	m.objects[name] = obj
	return nil
}

func (m *Memory) Stat(ctx context.Context, name string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{Name: name, ContentType: obj.contentType, Size: int64(len(obj.data))}, nil
}

func (m *Memory) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return ErrNotFound
	}
	delete(m.objects, name)
	return nil
}

func (m *Memory) PublicURL(name string) string {
	return publicURL(m.baseURL, m.bucket, name)
}

// SignedPutURL returns the public URL tagged with its expiry. Nothing
// enforces it; the memory store has no HTTP surface.
func (m *Memory) SignedPutURL(name, contentType string, expires time.Duration) (string, error) {
	if expires <= 0 {
		return "", errors.New("blob: presign expiry must be positive")
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(m.now().Add(expires).Unix(), 10))
	if contentType != "" {
		q.Set("contentType", contentType)
	}
	return m.PublicURL(name) + "?" + q.Encode(), nil
}

// IsPublic reports whether name was made public.
func (m *Memory) IsPublic(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[name].public
}

// Object returns a copy of the stored bytes.
func (m *Memory) Object(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Names lists the stored object names in sorted order.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
