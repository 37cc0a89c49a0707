// Package scratch manages the directory that holds uploaded audio while it
// is being transcribed.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain/repositories"
)

const (
	// DefaultDir is the scratch directory used when none is configured
	DefaultDir = "temp_audio"

	// DefaultRetention is the maximum age of a temp file
	DefaultRetention = 600 * time.Second

	maxBaseNameLength = 64
	tokenLength       = 8
	maxAllocAttempts  = 5
)

var _ repositories.TempStore = (*Store)(nil)

// Store allocates, releases and sweeps temp files in one directory
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily.
func NewStore(dir string, logger *zap.Logger) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{
		dir:    dir,
		logger: logger,
	}
}

// Dir returns the scratch directory
func (s *Store) Dir() string {
	return s.dir
}

// Allocate creates an empty file named {base}_{token}.{ext} for the
// upload. The file is created exclusively, so two allocations never share
// a path.
func (s *Store) Allocate(originalName string) (repositories.Allocation, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return repositories.Allocation{}, fmt.Errorf("create scratch dir: %w", err)
	}

	base, ext := SplitName(originalName)

	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		token := NewToken()
		path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.%s", base, token, ext))

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if errors.Is(err, fs.ErrExist) {
			s.logger.Debug("Temp path collision, retrying", zap.String("path", path))
			continue
		}
		if err != nil {
			return repositories.Allocation{}, fmt.Errorf("create temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return repositories.Allocation{}, fmt.Errorf("close temp file: %w", err)
		}

		return repositories.Allocation{Token: token, Path: path}, nil
	}

	return repositories.Allocation{}, fmt.Errorf("allocate temp file for %q: too many collisions", originalName)
}

// Release deletes a temp file. Failures are logged and otherwise ignored.
func (s *Store) Release(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Failed to release temp file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	s.logger.Debug("Released temp file", zap.String("path", path))
}

// Sweep deletes every regular file older than maxAge and returns the
// number of files removed. Files that vanish mid-scan are skipped.
func (s *Store) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to scan scratch dir", zap.String("dir", s.dir), zap.Error(err))
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("Failed to sweep temp file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Swept stale temp files",
			zap.String("dir", s.dir),
			zap.Int("removed", removed),
			zap.Duration("maxAge", maxAge))
	}
	return removed
}

// NewToken returns a short random token
func NewToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:tokenLength]
}

// SplitName turns an uploaded file name into a filesystem-safe base name
// and a lowercase extension without the dot.
func SplitName(originalName string) (base, ext string) {
	name := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	base = sanitize(strings.TrimSuffix(name, filepath.Ext(name)))
	ext = sanitize(ext)

	if base == "" {
		base = "audio"
	}
	if len(base) > maxBaseNameLength {
		base = base[:maxBaseNameLength]
	}
	if ext == "" {
		ext = "bin"
	}
	return base, ext
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
