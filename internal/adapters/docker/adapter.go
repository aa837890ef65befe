package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/melih/lighthouse-router/internal/core/ports"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Labels attached to containers created by the adapter.
const (
	LabelIdentity   = "lighthouse.identity"
	LabelPort       = "lighthouse.port"
	LabelSleepAfter = "lighthouse.sleep-after"
)

const (
	defaultStartTimeout = 5 * time.Minute
	stopTimeout         = 10 * time.Second
	logTail             = "200"
)

// dockerAPI is the subset of *client.Client the adapter uses.
type dockerAPI interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
	Close() error
}

// Adapter implements ports.ContainerResolver and ports.ContainerInspector on
// top of a Docker Engine. It plays the platform's part: it creates the
// container from its definition, wakes it when stopped, and puts it to
// sleep once idle.
type Adapter struct {
	api          dockerAPI
	def          domain.ContainerDefinition
	builder      ports.ImageBuilder
	log          zerolog.Logger
	startTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	lastUsed time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBuilder lets the adapter build the image from def.Source when it is
// missing locally.
func WithBuilder(b ports.ImageBuilder) Option {
	return func(a *Adapter) { a.builder = b }
}

// WithLogger sets the adapter logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithStartTimeout bounds how long creating or waking the container may take.
func WithStartTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.startTimeout = d }
}

// NewAdapter creates a Docker adapter for def using the environment's
// Docker connection settings.
func NewAdapter(def domain.ContainerDefinition, opts ...Option) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newAdapter(cli, def, opts...), nil
}

func newAdapter(api dockerAPI, def domain.ContainerDefinition, opts ...Option) *Adapter {
	a := &Adapter{
		api:          api,
		def:          def,
		log:          zerolog.Nop(),
		startTimeout: defaultStartTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases the Docker client.
func (a *Adapter) Close() error {
	return a.api.Close()
}

// Resolve returns the running instance for id, creating or starting the
// container first when needed. Concurrent calls share one wake-up.
func (a *Adapter) Resolve(ctx context.Context, id domain.ContainerIdentity) (domain.Instance, error) {
	name, err := a.name(id)
	if err != nil {
		return domain.Instance{}, err
	}
	a.touch()

	ch := a.group.DoChan(name, func() (any, error) {
		// The wake-up is shared, so one caller going away must not abort it.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.startTimeout)
		defer cancel()
		return a.resolve(wctx, name)
	})

	select {
	case <-ctx.Done():
		return domain.Instance{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Instance{}, res.Err
		}
		// A cold start can outlast the idle window; count the request from
		// when the container became ready.
		a.touch()
		return res.Val.(domain.Instance), nil
	}
}

func (a *Adapter) resolve(ctx context.Context, name string) (domain.Instance, error) {
	info, err := a.api.ContainerInspect(ctx, name)
	switch {
	case errdefs.IsNotFound(err):
		if err := a.create(ctx, name); err != nil {
			return domain.Instance{}, err
		}
	case err != nil:
		return domain.Instance{}, fmt.Errorf("failed to inspect container: %w", err)
	case isRunning(info):
		return a.instance(info)
	default:
		a.log.Info().Str("container", name).Str("state", stateOf(info)).Msg("waking container")
		if err := a.api.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
			return domain.Instance{}, fmt.Errorf("failed to start container: %w", err)
		}
	}

	info, err = a.api.ContainerInspect(ctx, name)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("failed to inspect container: %w", err)
	}
	if !isRunning(info) {
		return domain.Instance{}, fmt.Errorf("container %q is not running (state %s)", name, stateOf(info))
	}
	return a.instance(info)
}

// create provisions the image if needed, then creates and starts the container.
func (a *Adapter) create(ctx context.Context, name string) error {
	if err := a.ensureImage(ctx); err != nil {
		return err
	}

	port := nat.Port(strconv.Itoa(a.def.Port) + "/tcp")
	cfg := &container.Config{
		Image:        a.def.Image,
		Env:          a.def.Env.Pairs(),
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels: map[string]string{
			LabelIdentity:   a.def.Identity.String(),
			LabelPort:       strconv.Itoa(a.def.Port),
			LabelSleepAfter: a.def.SleepAfter,
		},
	}
	hostCfg := &container.HostConfig{}
	if a.def.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(a.def.Network)
	}

	a.log.Info().
		Str("container", name).
		Str("image", a.def.Image).
		Strs("env", a.def.Env.Keys()).
		Msg("creating container")

	resp, err := a.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	switch {
	case errdefs.IsConflict(err):
		// Created by someone else in the meantime; starting it is enough.
		a.log.Debug().Str("container", name).Msg("container already exists")
	case err != nil:
		return fmt.Errorf("failed to create container: %w", err)
	default:
		for _, w := range resp.Warnings {
			a.log.Warn().Str("container", name).Msg(w)
		}
	}

	if err := a.api.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// ensureImage makes sure def.Image exists locally: it is built from source
// when a source is configured, and pulled otherwise.
func (a *Adapter) ensureImage(ctx context.Context) error {
	_, _, err := a.api.ImageInspectWithRaw(ctx, a.def.Image)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image: %w", err)
	}

	if a.builder != nil && a.def.Source.Enabled() {
		if _, err := a.builder.BuildImage(ctx, a.def.Source, a.def.Image); err != nil {
			return fmt.Errorf("failed to build image: %w", err)
		}
		return nil
	}

	a.log.Info().Str("image", a.def.Image).Msg("pulling image")
	reader, err := a.api.ImagePull(ctx, a.def.Image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	if err := DrainMessages(reader, a.log); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}

// Status reports the container behind id without starting it.
func (a *Adapter) Status(ctx context.Context, id domain.ContainerIdentity) (domain.Instance, error) {
	name, err := a.name(id)
	if err != nil {
		return domain.Instance{}, err
	}
	info, err := a.api.ContainerInspect(ctx, name)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("failed to inspect container: %w", err)
	}
	inst := domain.Instance{
		ID:       shortID(info.ID),
		Identity: id,
		Image:    a.def.Image,
		Host:     a.address(info),
		Port:     a.def.Port,
		State:    stateOf(info),
	}
	if info.Config != nil {
		inst.Image = info.Config.Image
	}
	return inst, nil
}

// Stop puts the container to sleep. The next Resolve wakes it.
func (a *Adapter) Stop(ctx context.Context, id domain.ContainerIdentity) error {
	name, err := a.name(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop(ctx, name)
}

func (a *Adapter) stop(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := a.api.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	a.lastUsed = time.Time{}
	return nil
}

// Logs returns the recent container output with stdout and stderr merged.
func (a *Adapter) Logs(ctx context.Context, id domain.ContainerIdentity) (io.ReadCloser, error) {
	name, err := a.name(id)
	if err != nil {
		return nil, err
	}
	rc, err := a.api.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       logTail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer rc.Close()
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (a *Adapter) name(id domain.ContainerIdentity) (string, error) {
	if id != a.def.Identity {
		return "", fmt.Errorf("unknown container identity %q", id)
	}
	return id.String(), nil
}

func (a *Adapter) touch() {
	a.mu.Lock()
	a.lastUsed = a.now()
	a.mu.Unlock()
}

func (a *Adapter) instance(info types.ContainerJSON) (domain.Instance, error) {
	host := a.address(info)
	if host == "" {
		return domain.Instance{}, fmt.Errorf("container %q has no IP address", a.def.Identity)
	}
	inst := domain.Instance{
		ID:       shortID(info.ID),
		Identity: a.def.Identity,
		Image:    a.def.Image,
		Host:     host,
		Port:     a.def.Port,
		State:    stateOf(info),
	}
	if info.Config != nil {
		inst.Image = info.Config.Image
	}
	return inst, nil
}

// address picks the container IP on the configured network, or on the
// first network that has one.
func (a *Adapter) address(info types.ContainerJSON) string {
	if info.NetworkSettings == nil {
		return ""
	}
	nets := info.NetworkSettings.Networks
	if a.def.Network != "" {
		if ep, ok := nets[a.def.Network]; ok && ep != nil {
			return ep.IPAddress
		}
		return ""
	}
	names := make([]string, 0, len(nets))
	for n := range nets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if ep := nets[n]; ep != nil && ep.IPAddress != "" {
			return ep.IPAddress
		}
	}
	return ""
}

func isRunning(info types.ContainerJSON) bool {
	return info.ContainerJSONBase != nil && info.State != nil && info.State.Running
}

func stateOf(info types.ContainerJSON) string {
	if info.ContainerJSONBase == nil || info.State == nil {
		return "unknown"
	}
	return info.State.Status
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
