package local

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsum-backend/internal/shared/storage/object"
	"docsum-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// New creates a local object store rooted at baseDir, creating it if needed.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir uploads: %w", err)
	}
	return &Store{baseDir: baseDir, now: time.Now}, nil
}

// Save writes the reader to <baseDir>/<unix-millis>-<name>.
func (s *Store) Save(ctx context.Context, fileName string, r io.Reader) (object.Ref, error) {
	sanitizedName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return object.Ref{}, fmt.Errorf("sanitize file name: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return object.Ref{}, err
	}

	stamp := s.now().UnixMilli()
	fullPath := filepath.Join(s.baseDir, fmt.Sprintf("%d-%s", stamp, sanitizedName))
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		fullPath = filepath.Join(s.baseDir, fmt.Sprintf("%d-%s-%s", stamp, randomID(), sanitizedName))
		f, err = os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	}
	if err != nil {
		return object.Ref{}, fmt.Errorf("open file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(fullPath)
		return object.Ref{}, fmt.Errorf("write body: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return object.Ref{}, fmt.Errorf("close file: %w", err)
	}

	return object.Ref{Kind: object.KindLocal, Path: fullPath}, nil
}

// Open opens a stored file for reading. Paths outside baseDir are rejected.
func (s *Store) Open(ctx context.Context, ref object.Ref) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Kind != object.KindLocal || ref.Path == "" {
		return nil, fmt.Errorf("not a local ref")
	}

	clean := filepath.Clean(ref.Path)
	rel, err := filepath.Rel(filepath.Clean(s.baseDir), clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid local path")
	}

	return os.Open(clean)
}

func randomID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

var _ object.ObjectStore = (*Store)(nil)
