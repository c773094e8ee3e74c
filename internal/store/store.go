package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/carbonintel/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by Get when no record has the id
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt wraps a stored record that cannot be decoded. Get returns
	// it; Scan skips such records.
	ErrCorrupt = errors.New("stored record is undecodable")
)

// Store is the keyed record store the pipeline persists into.
// Get and Scan return copies; Put replaces a record atomically.
type Store interface {
	Get(ctx context.Context, id string) (model.Record, error)
	Put(ctx context.Context, rec model.Record) error
	Scan(ctx context.Context, pred func(model.Record) bool) ([]model.Record, error)
}

// All matches every record
func All(model.Record) bool { return true }

// Open builds the store selected by cfg.Driver, wrapped in a read-through
// cache when cfg.CacheTTL is positive
func Open(ctx context.Context, cfg model.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		s = NewMemoryStore()
	case "file":
		s, err = NewFileStore(ExpandHome(cfg.Path), WithFileLogger(logger))
	case "postgres":
		s, err = OpenPostgres(ctx, cfg.DSN, cfg.Table, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("store opened",
		zap.String("driver", cfg.Driver),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	if cfg.CacheTTL > 0 {
		s = NewCachedStore(s, cfg.CacheTTL)
	}
	return s, nil
}

// Close releases the store's resources if it holds any
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ExpandHome resolves a leading ~ to the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
