// Package docker verifies generated Dockerfiles by building them against the
// repository they were generated for.
package docker

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
)

// GeneratedDockerfile is the name the generated file gets inside the build
// context, so an existing Dockerfile in the repository is left alone.
const GeneratedDockerfile = ".deploysmith.Dockerfile"

// buildAPI is the subset of the Docker SDK the verifier needs.
type buildAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	Close() error
}

// BuildResult describes a finished verification build.
type BuildResult struct {
	Tag      string        `json:"tag"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// Verifier builds generated Dockerfiles with the Docker daemon.
type Verifier struct {
	cli    buildAPI
	logger *slog.Logger
}

// NewVerifier connects to the daemon at host, or the environment's default
// host when host is empty.
func NewVerifier(host string, logger *slog.Logger) (*Verifier, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewVerifier", "", "", "failed to create client", ErrConnectionFailed)
	}
	return newVerifier(cli, logger), nil
}

func newVerifier(cli buildAPI, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{cli: cli, logger: logger}
}

// Ping checks if the Docker daemon is reachable.
func (v *Verifier) Ping(ctx context.Context) error {
	if _, err := v.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (v *Verifier) Close() error {
	return v.cli.Close()
}

// Build sends contextDir plus the generated dockerfile to the daemon and
// waits for the build to finish. The image is removed afterwards unless keep
// is set.
func (v *Verifier) Build(ctx context.Context, contextDir, dockerfile, tag string, keep bool) (*BuildResult, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeBuildContext(pw, contextDir, dockerfile))
	}()
	defer pr.Close()

	start := time.Now()
	v.logger.Info("verifying dockerfile", "context", contextDir, "tag", tag)

	resp, err := v.cli.ImageBuild(ctx, pr, build.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  GeneratedDockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewDockerError("Build", "image", tag, "build timed out", ErrTimeout)
		}
		return nil, NewDockerError("Build", "image", tag, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	output, buildErr := readBuildStream(resp.Body)
	result := &BuildResult{Tag: tag, Output: output, Duration: time.Since(start)}
	if buildErr != nil {
		return result, NewDockerError("Build", "image", tag, buildErr.Error(), ErrBuildFailed)
	}
	v.logger.Info("dockerfile verified", "tag", tag, "duration", result.Duration)

	if !keep {
		if _, err := v.cli.ImageRemove(ctx, tag, image.RemoveOptions{Force: true, PruneChildren: true}); err != nil {
			v.logger.Warn("failed to remove verification image", "tag", tag, "error", err)
		}
	}
	return result, nil
}

// =============================================================================
// Build Context
// =============================================================================

// writeBuildContext tars dir, honouring .dockerignore and skipping .git, and
// appends the generated Dockerfile.
func writeBuildContext(w io.Writer, dir, dockerfile string) error {
	ignore, err := loadIgnore(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		return NewDockerError("Build", "context", dir, err.Error(), ErrContextFailed)
	}

	tw := tar.NewWriter(w)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		if rel == ".git" || rel == GeneratedDockerfile {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		skip, err := ignore.excluded(rel)
		if err != nil {
			return err
		}
		if skip {
			if d.IsDir() && !ignore.reincludes(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return NewDockerError("Build", "context", dir, walkErr.Error(), ErrContextFailed)
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:    GeneratedDockerfile,
		Mode:    0o644,
		Size:    int64(len(dockerfile)),
		ModTime: time.Now(),
	}); err != nil {
		return err
	}
	if _, err := io.WriteString(tw, dockerfile); err != nil {
		return err
	}
	return tw.Close()
}

// ignoreRules applies .dockerignore the way the daemon's own context
// loader does, including ! exceptions and ** globs.
type ignoreRules struct {
	pm *patternmatcher.PatternMatcher
}

func loadIgnore(path string) (*ignoreRules, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ignoreRules{}, nil
		}
		return nil, err
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read .dockerignore: %w", err)
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("parse .dockerignore: %w", err)
	}
	return &ignoreRules{pm: pm}, nil
}

// excluded reports whether rel, a path relative to the context root, is
// left out of the build context.
func (r *ignoreRules) excluded(rel string) (bool, error) {
	if r.pm == nil {
		return false, nil
	}
	return r.pm.MatchesOrParentMatches(rel)
}

// reincludes reports whether an exception pattern may match something below
// the excluded directory rel, in which case the walk has to descend into it.
func (r *ignoreRules) reincludes(rel string) bool {
	if r.pm == nil || !r.pm.Exclusions() {
		return false
	}
	prefix := filepath.ToSlash(rel) + "/"
	for _, p := range r.pm.Patterns() {
		if !p.Exclusion() {
			continue
		}
		pattern := filepath.ToSlash(p.String())
		if strings.HasPrefix(pattern+"/", prefix) || strings.ContainsAny(pattern, "*?[") {
			return true
		}
	}
	return false
}

// =============================================================================
// Build Output
// =============================================================================

// readBuildStream collects the daemon's build log and returns the first
// error message it reports.
func readBuildStream(r io.Reader) (string, error) {
	var out strings.Builder
	if err := jsonmessage.DisplayJSONMessagesStream(r, &out, 0, false, nil); err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return out.String(), errors.New(jerr.Message)
		}
		return out.String(), fmt.Errorf("read build output: %w", err)
	}
	return out.String(), nil
}
