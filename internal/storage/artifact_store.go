package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "go-ocr-enhancer/internal/errors"
)

// Artifact namespaces. Keys have the form "<namespace>/<name>".
const (
	NamespaceUploads = "uploads"
	NamespaceResults = "results"
)

// ArtifactStore keeps uploaded and enhanced images of each run.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Key joins a namespace and a file name into an artifact key.
func Key(namespace, name string) string {
	return namespace + "/" + name
}

// SplitKey validates key and returns its namespace and name.
func SplitKey(key string) (namespace, name string, err error) {
	key = strings.TrimPrefix(key, "/")
	namespace, name, ok := strings.Cut(key, "/")
	if !ok || name == "" || path.Base(name) != name || name == "." || name == ".." {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("invalid artifact key %q", key), nil)
	}
	if namespace != NamespaceUploads && namespace != NamespaceResults {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("unknown artifact namespace %q", namespace), nil)
	}
	return namespace, name, nil
}

// LocalStore writes artifacts below one directory per namespace.
type LocalStore struct {
	dirs map[string]string
}

// NewLocalStore creates the upload and result directories if needed.
func NewLocalStore(uploadDir, resultDir string) (*LocalStore, error) {
	dirs := map[string]string{
		NamespaceUploads: uploadDir,
		NamespaceResults: resultDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewStorageError("failed to create artifact directory", err)
		}
	}
	return &LocalStore{dirs: dirs}, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	namespace, name, err := SplitKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dirs[namespace], name), nil
}

// Save implements ArtifactStore.
func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return apperrors.NewStorageError("failed to write artifact", err)
	}
	return nil
}

// Open implements ArtifactStore.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, apperrors.NewStorageError("failed to open artifact", err)
	}
	return f, nil
}
