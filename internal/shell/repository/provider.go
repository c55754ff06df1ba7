// Package repository turns a local path or git URL into a directory on disk.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	ErrGitNotFound = errors.New("git executable not found in PATH")
	ErrNotFound    = errors.New("repository path does not exist")
)

// CloneError reports a failed git clone with the tool's output.
type CloneError struct {
	Source string
	Branch string
	Output string
	Err    error
}

func (e *CloneError) Error() string {
	branch := e.Branch
	if branch == "" {
		branch = "default"
	}
	msg := fmt.Sprintf("clone %s (branch: %s): %v", e.Source, branch, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether source names a git remote rather than a local path.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasSuffix(source, ".git")
}

// Checkout is a directory ready for analysis. Close releases it.
type Checkout struct {
	Path   string
	Source string
	Branch string
	Remote bool
}

// Close removes the temporary clone. It is a no-op for local paths.
func (c *Checkout) Close() error {
	if c == nil || !c.Remote {
		return nil
	}
	return os.RemoveAll(c.Path)
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Config holds Provider configuration.
type Config struct {
	TempDir string // Parent for clones; empty uses the OS default
	GitPath string // Empty resolves git from PATH
	Runner  Runner // nil uses ExecRunner
}

// Provider resolves repository sources.
type Provider struct {
	tempDir string
	gitPath string
	run     Runner
	logger  *slog.Logger
}

// NewProvider creates a new Provider.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	run := cfg.Runner
	if run == nil {
		run = ExecRunner
	}
	return &Provider{tempDir: cfg.TempDir, gitPath: cfg.GitPath, run: run, logger: logger}
}

// Provide returns a Checkout for source. Local paths must exist and are used
// in place; remote sources are shallow-cloned into a temporary directory.
func (p *Provider) Provide(ctx context.Context, source, branch string) (*Checkout, error) {
	if !IsRemote(source) {
		return p.local(source)
	}

	gitPath := p.gitPath
	if gitPath == "" {
		found, err := exec.LookPath("git")
		if err != nil {
			return nil, &CloneError{Source: source, Branch: branch, Err: ErrGitNotFound}
		}
		gitPath = found
	}

	dir, err := os.MkdirTemp(p.tempDir, "deploysmith-clone-")
	if err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, "--", source, dir)

	p.logger.Info("cloning repository", "source", source, "branch", branchLabel(branch))
	out, err := p.run(ctx, gitPath, args...)
	if err != nil {
		os.RemoveAll(dir)
		return nil, &CloneError{Source: source, Branch: branch, Output: string(out), Err: err}
	}
	p.logger.Info("repository cloned", "path", dir)

	return &Checkout{Path: dir, Source: source, Branch: branch, Remote: true}, nil
}

func (p *Provider) local(source string) (*Checkout, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", source, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", abs, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", abs, ErrNotFound)
	}
	return &Checkout{Path: abs, Source: source}, nil
}

func branchLabel(branch string) string {
	if branch == "" {
		return "default"
	}
	return branch
}
