package ports

import (
	"context"

	"github.com/melih/lighthouse-router/internal/core/domain"
)

// ImageBuilder builds container images from source code.
type ImageBuilder interface {
	// BuildImage clones src and builds an image tagged imageName from it.
	// It returns the tag of the built image or an error.
	BuildImage(ctx context.Context, src domain.ImageSource, imageName string) (string, error)
}
