package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/melih/lighthouse-router/internal/logger"
	"github.com/spf13/pflag"
)

// EnvPrefix namespaces the environment fallbacks of every flag.
const EnvPrefix = "ROUTER_"

// DefaultContainerEnv is the set of variables forwarded into the container
// when none is configured.
var DefaultContainerEnv = []string{"NOVA_API_KEY", "CF_ACCOUNT_ID", "CF_KV_NAMESPACE_ID", "CF_API_TOKEN"}

var (
	containerNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	envKeyRe        = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// LookupFunc reads a variable from the process environment.
type LookupFunc func(key string) (string, bool)

// Config is the process-wide configuration bundle. It is built once at
// startup and passed by value; nothing mutates it afterwards.
type Config struct {
	Listen      string
	AdminListen string
	Container   ContainerConfig
	Log         LogConfig
}

// ContainerConfig describes the single container the router forwards to.
type ContainerConfig struct {
	Name    string
	Image   string
	Network string
	EnvKeys []string
	Env     domain.Environment
	// MissingEnv lists declared keys that were unset in the process environment.
	MissingEnv []string
	Source     domain.ImageSource
}

// LogConfig selects the logger level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// RegisterFlags adds the router flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("listen", ":3000", "Address the public HTTP edge listens on")
	fs.String("admin-listen", "", "Address of the admin listener (disabled when empty)")
	fs.String("container-name", "sky-match-container", "Container identity to route every request to")
	fs.String("container-image", "sky-match:latest", "Image used when the container has to be created")
	fs.String("container-network", "", "Docker network the container is attached to")
	fs.StringSlice("container-env", DefaultContainerEnv, "Names of process environment variables forwarded into the container")
	fs.String("source-repo", "", "Git repository to build the image from when it is missing")
	fs.String("source-ref", "", "Branch of --source-repo to build")
	fs.String("source-dir", ".", "Build context directory inside --source-repo")
	fs.String("source-dockerfile", "Dockerfile", "Dockerfile path relative to the build context")
	fs.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	fs.String("log-format", "json", "Log format (json or pretty)")
}

// NewFlagSet returns a flag set with every router flag registered.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lighthouse-router", pflag.ContinueOnError)
	RegisterFlags(fs)
	return fs
}

// Load builds a Config from fs. A flag set on the command line wins over its
// ROUTER_* environment variable, which wins over the flag default. Values of
// the forwarded container variables are read through lookup only.
func Load(fs *pflag.FlagSet, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	keys, err := sliceValue(fs, "container-env", lookup)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Listen:      stringValue(fs, "listen", lookup),
		AdminListen: stringValue(fs, "admin-listen", lookup),
		Container: ContainerConfig{
			Name:    stringValue(fs, "container-name", lookup),
			Image:   stringValue(fs, "container-image", lookup),
			Network: stringValue(fs, "container-network", lookup),
			EnvKeys: keys,
			Source: domain.ImageSource{
				RepoURL:    stringValue(fs, "source-repo", lookup),
				Ref:        stringValue(fs, "source-ref", lookup),
				Dir:        stringValue(fs, "source-dir", lookup),
				Dockerfile: stringValue(fs, "source-dockerfile", lookup),
			},
		},
		Log: LogConfig{
			Level:  stringValue(fs, "log-level", lookup),
			Format: stringValue(fs, "log-format", lookup),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	vars := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := lookup(k)
		if !ok || v == "" {
			cfg.Container.MissingEnv = append(cfg.Container.MissingEnv, k)
		}
		vars[k] = v
	}
	cfg.Container.Env = domain.NewEnvironment(vars)

	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.AdminListen != "" && c.AdminListen == c.Listen {
		return fmt.Errorf("admin listener must not share the public address %q", c.Listen)
	}
	if !containerNameRe.MatchString(c.Container.Name) {
		return fmt.Errorf("invalid container name %q", c.Container.Name)
	}
	if c.Container.Image == "" {
		return fmt.Errorf("container image is required")
	}

	seen := make(map[string]bool, len(c.Container.EnvKeys))
	for _, k := range c.Container.EnvKeys {
		if !envKeyRe.MatchString(k) {
			return fmt.Errorf("invalid container env name %q", k)
		}
		if seen[k] {
			return fmt.Errorf("container env name %q listed twice", k)
		}
		seen[k] = true
	}

	switch c.Log.Format {
	case "json", "pretty":
	default:
		return fmt.Errorf("unknown log format %q (want json or pretty)", c.Log.Format)
	}
	return nil
}

// Definition returns the container definition handed to the platform.
func (c Config) Definition() domain.ContainerDefinition {
	def := domain.NewDefinition(domain.ContainerIdentity(c.Container.Name), c.Container.Image, c.Container.Env)
	def.Network = c.Container.Network
	def.Source = c.Container.Source
	return def
}

// LoggerConfig maps the log settings onto the logger package.
func (c Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	lc.WithCaller = strings.EqualFold(c.Log.Level, "debug") || strings.EqualFold(c.Log.Level, "trace")
	return lc
}

// EnvName returns the environment fallback for a flag name.
func EnvName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func stringValue(fs *pflag.FlagSet, name string, lookup LookupFunc) string {
	f := fs.Lookup(name)
	if f == nil {
		return ""
	}
	if !f.Changed {
		if v, ok := lookup(EnvName(name)); ok && v != "" {
			return v
		}
	}
	return f.Value.String()
}

func sliceValue(fs *pflag.FlagSet, name string, lookup LookupFunc) ([]string, error) {
	f := fs.Lookup(name)
	if f == nil {
		return nil, fmt.Errorf("flag %q not registered", name)
	}
	if !f.Changed {
		if v, ok := lookup(EnvName(name)); ok {
			return splitList(v), nil
		}
	}
	vals, err := fs.GetStringSlice(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return splitList(strings.Join(vals, ",")), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
