package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/melih/lighthouse-router/internal/core/domain"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeDocker struct {
	mu sync.Mutex

	exists       bool
	running      bool
	imagePresent bool
	ip           string
	network      string

	createdConfig *container.Config
	createdHost   *container.HostConfig
	createdName   string

	creates, starts, stops, pulls, inspects int

	inspectErr error
	startErr   error
	pullBody   string
	logLines   []string

	// onPull runs while the image is being pulled.
	onPull func()
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{imagePresent: true, ip: "172.17.0.2", network: "bridge"}
}

func (f *fakeDocker) ContainerInspect(_ context.Context, name string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspects++
	if f.inspectErr != nil {
		return types.ContainerJSON{}, f.inspectErr
	}
	if !f.exists {
		return types.ContainerJSON{}, errdefs.NotFound(errors.New("no such container: " + name))
	}
	status := "exited"
	nets := map[string]*network.EndpointSettings{}
	if f.running {
		status = "running"
		nets[f.network] = &network.EndpointSettings{IPAddress: f.ip}
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:    "0123456789abcdef0123",
			Name:  "/" + name,
			State: &types.ContainerState{Running: f.running, Status: status},
		},
		Config:          &container.Config{Image: "sky-match:latest"},
		NetworkSettings: &types.NetworkSettings{Networks: nets},
	}, nil
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exists {
		return container.CreateResponse{}, errdefs.Conflict(errors.New("name already in use"))
	}
	f.creates++
	f.exists = true
	f.createdConfig = cfg
	f.createdHost = host
	f.createdName = name
	return container.CreateResponse{ID: "0123456789abcdef0123"}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, _ string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeDocker) ContainerStop(_ context.Context, _ string, _ container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
	return nil
}

func (f *fakeDocker) ContainerLogs(_ context.Context, _ string, _ container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	for i, line := range f.logLines {
		stream := stdcopy.Stdout
		if i%2 == 1 {
			stream = stdcopy.Stderr
		}
		_, _ = stdcopy.NewStdWriter(&buf, stream).Write([]byte(line + "\n"))
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ImageInspectWithRaw(_ context.Context, image string) (types.ImageInspect, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.imagePresent {
		return types.ImageInspect{}, nil, errdefs.NotFound(errors.New("no such image: " + image))
	}
	return types.ImageInspect{ID: "sha256:abc"}, nil, nil
}

func (f *fakeDocker) ImagePull(_ context.Context, _ string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	if f.onPull != nil {
		f.onPull()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	f.imagePresent = true
	return io.NopCloser(strings.NewReader(f.pullBody)), nil
}

func (f *fakeDocker) Close() error { return nil }

type fakeBuilder struct {
	calls []domain.ImageSource
	err   error
}

func (b *fakeBuilder) BuildImage(_ context.Context, src domain.ImageSource, image string) (string, error) {
	b.calls = append(b.calls, src)
	if b.err != nil {
		return "", b.err
	}
	return image, nil
}
