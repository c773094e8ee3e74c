package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/carbonintel/internal/model"
	"go.uber.org/zap"
)

// FileStore persists one JSON document per record in a directory
type FileStore struct {
	mu     sync.RWMutex
	dir    string
	logger *zap.Logger
}

// FileOption configures a FileStore
type FileOption func(*FileStore)

// WithFileLogger sets the logger that reports skipped record files
func WithFileLogger(l *zap.Logger) FileOption {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &FileStore{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get reads the record with the given id
func (s *FileStore) Get(ctx context.Context, id string) (model.Record, error) {
	path, err := s.path(id)
	if err != nil {
		return model.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return readRecord(path)
}

// Put writes rec to a temporary file and renames it into place
func (s *FileStore) Put(ctx context.Context, rec model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(rec.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close record file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename record file: %w", err)
	}
	return nil
}

// Scan reads every record file and returns the matching ones ordered by id.
// Undecodable files are logged and skipped.
func (s *FileStore) Scan(ctx context.Context, pred func(model.Record) bool) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []model.Record
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(filepath.Join(s.dir, name))
		if errors.Is(err, ErrCorrupt) || errors.Is(err, ErrNotFound) {
			s.logger.Warn("skipping record file", zap.String("file", name), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid record id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func readRecord(path string) (model.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("read record file: %w", err)
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Record{}, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	return rec, nil
}
