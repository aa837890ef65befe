package ports

import (
	"context"
	"io"

	"github.com/melih/lighthouse-router/internal/core/domain"
)

// ContainerResolver turns a container identity into a live instance,
// creating or waking the container if needed. Implementations own the
// container lifecycle; callers only forward through the handle.
type ContainerResolver interface {
	Resolve(ctx context.Context, id domain.ContainerIdentity) (domain.Instance, error)
}

// ContainerInspector exposes read and stop operations for the admin surface.
type ContainerInspector interface {
	Status(ctx context.Context, id domain.ContainerIdentity) (domain.Instance, error)
	Stop(ctx context.Context, id domain.ContainerIdentity) error
	Logs(ctx context.Context, id domain.ContainerIdentity) (io.ReadCloser, error)
}
