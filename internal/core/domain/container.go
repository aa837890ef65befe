package domain

import "fmt"

const (
	// DefaultPort is the port every container instance listens on.
	DefaultPort = 8080
	// DefaultSleepAfter is the idle timeout handed to the platform, verbatim.
	DefaultSleepAfter = "2m"
)

// ContainerIdentity is the logical name used to locate or provision a container.
type ContainerIdentity string

func (id ContainerIdentity) String() string { return string(id) }

// ContainerDefinition describes the single container a deployment routes to.
// It is built once at startup and handed to the platform adapter; the
// forwarder never reads it.
type ContainerDefinition struct {
	Identity   ContainerIdentity
	Image      string
	Network    string // optional docker network to attach to
	Port       int
	SleepAfter string
	Env        Environment
	Source     ImageSource
}

// NewDefinition returns a definition with the fixed port and idle timeout.
func NewDefinition(identity ContainerIdentity, image string, env Environment) ContainerDefinition {
	return ContainerDefinition{
		Identity:   identity,
		Image:      image,
		Port:       DefaultPort,
		SleepAfter: DefaultSleepAfter,
		Env:        env,
	}
}

// ImageSource points at the repository an image can be built from when it
// is not present on the platform.
type ImageSource struct {
	RepoURL    string `json:"repo_url"`
	Ref        string `json:"ref"`
	Dir        string `json:"dir"`
	Dockerfile string `json:"dockerfile"`
}

// Enabled reports whether a repository was configured.
func (s ImageSource) Enabled() bool { return s.RepoURL != "" }

// Instance is a handle to a live container, as returned by the platform.
type Instance struct {
	ID       string            `json:"id"`
	Identity ContainerIdentity `json:"identity"`
	Image    string            `json:"image"`
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	State    string            `json:"state"` // running, exited, etc.
}

// Endpoint is the host:port traffic for the instance is sent to.
func (i Instance) Endpoint() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}
