// Package bootstrap wires the Docker platform adapter shared by the HTTP and
// Lambda edges.
package bootstrap

import (
	"github.com/melih/lighthouse-router/internal/adapters/builder"
	"github.com/melih/lighthouse-router/internal/adapters/docker"
	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/melih/lighthouse-router/internal/core/services"
	"github.com/melih/lighthouse-router/internal/logger"
	"github.com/rs/zerolog"
)

// NewPlatform creates the Docker adapter for def, with an image builder when
// def has a source repository.
func NewPlatform(def domain.ContainerDefinition, log zerolog.Logger) (*docker.Adapter, error) {
	opts := []docker.Option{docker.WithLogger(logger.ForComponent(log, "docker"))}
	if def.Source.Enabled() {
		b, err := builder.NewBuilderAdapter(logger.ForComponent(log, "builder"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, docker.WithBuilder(b))
	}
	return docker.NewAdapter(def, opts...)
}

// NewForwarder binds a forwarder to def's identity on platform.
func NewForwarder(platform *docker.Adapter, def domain.ContainerDefinition, log zerolog.Logger) *services.Forwarder {
	return services.NewForwarder(platform, def.Identity,
		services.WithLogger(logger.ForComponent(log, "forwarder")))
}
