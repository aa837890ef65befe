package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/melih/lighthouse-router/internal/core/ports"
	"github.com/rs/zerolog"
)

// Forwarder relays requests to the instance behind a single container identity.
type Forwarder struct {
	resolver ports.ContainerResolver
	identity domain.ContainerIdentity
	client   *http.Client
	log      zerolog.Logger
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithTransport replaces the round tripper used to reach the instance.
func WithTransport(rt http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) { f.client.Transport = rt }
}

// WithLogger sets the logger used for debug output.
func WithLogger(log zerolog.Logger) ForwarderOption {
	return func(f *Forwarder) { f.log = log }
}

// NewForwarder creates a forwarder bound to identity.
func NewForwarder(resolver ports.ContainerResolver, identity domain.ContainerIdentity, opts ...ForwarderOption) *Forwarder {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// The instance's bytes are relayed as-is, so never let the transport
	// decode a body it asked to be compressed.
	transport.DisableCompression = true

	f := &Forwarder{
		resolver: resolver,
		identity: identity,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Identity returns the container identity every request resolves.
func (f *Forwarder) Identity() domain.ContainerIdentity { return f.identity }

// Forward resolves the container (creating or waking it if necessary) and
// sends req to it. The response is returned untouched; the caller owns its
// body. Failures to resolve or reach the instance return a nil response.
func (f *Forwarder) Forward(ctx context.Context, req *http.Request) (*http.Response, error) {
	inst, err := f.resolver.Resolve(ctx, f.identity)
	if err != nil {
		return nil, fmt.Errorf("resolve container %q: %w", f.identity, err)
	}

	out := req.Clone(ctx)
	out.RequestURI = ""
	out.URL = &url.URL{
		Scheme:   "http",
		Host:     inst.Endpoint(),
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}
	if out.Host == "" {
		out.Host = req.URL.Host
	}

	f.log.Debug().
		Str("instance", inst.ID).
		Str("endpoint", inst.Endpoint()).
		Str("method", out.Method).
		Str("uri", out.URL.RequestURI()).
		Msg("forwarding request")

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("forward to container %q at %s: %w", f.identity, inst.Endpoint(), err)
	}
	return resp, nil
}
