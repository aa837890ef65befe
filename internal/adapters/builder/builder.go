package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/melih/lighthouse-router/internal/adapters/docker"
	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/rs/zerolog"
)

// imageBuilder is the part of the Docker client used for builds.
type imageBuilder interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
}

// cloneFunc clones a repository into dir.
type cloneFunc func(ctx context.Context, dir string, opts *git.CloneOptions) error

// Adapter implements ports.ImageBuilder with go-git and the Docker build API.
type Adapter struct {
	cli   imageBuilder
	clone cloneFunc
	log   zerolog.Logger
}

// NewBuilderAdapter creates a builder using the environment's Docker settings.
func NewBuilderAdapter(log zerolog.Logger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, clone: plainClone, log: log}, nil
}

func plainClone(ctx context.Context, dir string, opts *git.CloneOptions) error {
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	return err
}

// BuildImage shallow-clones src and builds imageName from its build context.
func (a *Adapter) BuildImage(ctx context.Context, src domain.ImageSource, imageName string) (string, error) {
	if !src.Enabled() {
		return "", fmt.Errorf("no source repository configured for %s", imageName)
	}

	tmpDir, err := os.MkdirTemp("", "lighthouse-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	log := a.log.With().Str("repo", src.RepoURL).Str("image", imageName).Logger()

	opts := &git.CloneOptions{
		URL:          src.RepoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if src.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Ref)
	}
	log.Info().Str("ref", src.Ref).Msg("cloning source")
	if err := a.clone(ctx, tmpDir, opts); err != nil {
		return "", fmt.Errorf("failed to clone repo: %w", err)
	}

	contextDir, err := buildContextDir(tmpDir, src.Dir)
	if err != nil {
		return "", err
	}
	tar, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	dockerfile := src.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	log.Info().Str("dockerfile", dockerfile).Msg("building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{imageName},
		Dockerfile: dockerfile,
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// The build only finishes once its output has been read.
	if err := docker.DrainMessages(resp.Body, log); err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	log.Info().Msg("image built")
	return imageName, nil
}

// buildContextDir resolves dir inside root, refusing paths that escape it.
func buildContextDir(root, dir string) (string, error) {
	if dir == "" || dir == "." {
		return root, nil
	}
	p := filepath.Join(root, filepath.Clean(dir))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("build directory %q is outside the repository", dir)
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("build directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("build directory %q is not a directory", dir)
	}
	return p, nil
}
