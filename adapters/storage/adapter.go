// Package storage provides object storage backends for call detail records.
// Supports S3, a local directory tree and memory.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cdr-cost/core/types"
	"cdr-cost/internal/errors"
)

// Backend is a storage backend type
type Backend string

const (
	BackendS3     Backend = "s3"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// Store is the storage interface
type Store interface {
	// Get opens an object for reading
	Get(ctx context.Context, loc types.Location) (*types.Object, error)

	// Put writes an object with its content type and exact length
	Put(ctx context.Context, loc types.Location, body []byte, contentType string) error
}

// FileStore maps buckets to directories under a base path
type FileStore struct {
	basePath string
}

// NewFileStore creates a file store
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) path(loc types.Location) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(loc.Key))
	if loc.Bucket == "" || clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid location %s", loc)
	}
	return filepath.Join(s.basePath, loc.Bucket, clean), nil
}

func (s *FileStore) Get(ctx context.Context, loc types.Location) (*types.Object, error) {
	p, err := s.path(loc)
	if err != nil {
		return nil, errors.Storage("resolve object path", err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Storage(fmt.Sprintf("open %s", loc), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Storage(fmt.Sprintf("stat %s", loc), err)
	}
	return &types.Object{
		Body:          f,
		ContentType:   contentTypeByExt(p),
		ContentLength: info.Size(),
	}, nil
}

func (s *FileStore) Put(ctx context.Context, loc types.Location, body []byte, contentType string) error {
	p, err := s.path(loc)
	if err != nil {
		return errors.Format("resolve object path", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Format("failed to create object directory", err)
	}
	if err := os.WriteFile(p, body, 0644); err != nil {
		return errors.Format(fmt.Sprintf("write %s", loc), err)
	}
	return nil
}

func contentTypeByExt(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// MemoryObject is an object held by MemoryStore
type MemoryObject struct {
	Body          []byte
	ContentType   string
	ContentLength int64
}

// MemoryStore is an in-memory storage backend (for testing)
type MemoryStore struct {
	objects map[types.Location]MemoryObject
	mu      sync.RWMutex
}

// NewMemoryStore creates a memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[types.Location]MemoryObject),
	}
}

func (s *MemoryStore) Get(ctx context.Context, loc types.Location) (*types.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[loc]
	if !ok {
		return nil, errors.Storage(fmt.Sprintf("object not found: %s", loc), os.ErrNotExist)
	}
	return &types.Object{
		Body:          io.NopCloser(bytes.NewReader(obj.Body)),
		ContentType:   obj.ContentType,
		ContentLength: obj.ContentLength,
	}, nil
}

func (s *MemoryStore) Put(ctx context.Context, loc types.Location, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[loc] = MemoryObject{
		Body:          append([]byte(nil), body...),
		ContentType:   contentType,
		ContentLength: int64(len(body)),
	}
	return nil
}

// Object returns a stored object for inspection
func (s *MemoryStore) Object(loc types.Location) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[loc]
	return obj, ok
}

// StoreFactory creates stores by backend type
func StoreFactory(ctx context.Context, backend Backend, config map[string]string) (Store, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendS3, "":
		return NewS3StoreFromEnv(ctx, config["region"])
	case BackendFile:
		path := config["path"]
		if path == "" {
			path = ".cdr-cost"
		}
		return NewFileStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// Ensure interfaces are implemented
var _ Store = (*FileStore)(nil)
var _ Store = (*MemoryStore)(nil)
var _ Store = (*S3Store)(nil)
