// Package sink persists generated artifacts.
package sink

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Sink saves named artifact content and returns where it went.
type Sink interface {
	Save(name, content string) (string, error)
}

// FileSink writes artifacts into a directory on an afero filesystem.
type FileSink struct {
	fs  afero.Fs
	dir string
}

// NewFileSink writes into dir on the real filesystem.
func NewFileSink(dir string) *FileSink {
	return NewFileSinkFs(afero.NewOsFs(), dir)
}

// NewMemorySink keeps artifacts in memory. Useful in tests and dry runs.
func NewMemorySink(dir string) *FileSink {
	return NewFileSinkFs(afero.NewMemMapFs(), dir)
}

// NewFileSinkFs writes into dir on fs.
func NewFileSinkFs(fs afero.Fs, dir string) *FileSink {
	return &FileSink{fs: fs, dir: dir}
}

// Dir returns the output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Save writes content to dir/name, creating dir as needed. Names may not
// escape the output directory.
func (s *FileSink) Save(name, content string) (string, error) {
	clean := filepath.Clean(name)
	if name == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(s.dir, clean)
	if err := afero.WriteFile(s.fs, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Read returns a previously saved artifact.
func (s *FileSink) Read(name string) (string, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, filepath.Clean(name)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
