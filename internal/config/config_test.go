package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewFlagSet(), envLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Listen)
	assert.Empty(t, cfg.AdminListen)
	assert.Equal(t, "sky-match-container", cfg.Container.Name)
	assert.Equal(t, "sky-match:latest", cfg.Container.Image)
	assert.Equal(t, DefaultContainerEnv, cfg.Container.EnvKeys)
	assert.ElementsMatch(t, DefaultContainerEnv, cfg.Container.MissingEnv)
	assert.Equal(t, "Dockerfile", cfg.Container.Source.Dockerfile)
	assert.False(t, cfg.Container.Source.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvValuesComeFromProcessEnvironment(t *testing.T) {
	cfg, err := Load(NewFlagSet(), envLookup(map[string]string{
		"NOVA_API_KEY":       "nova-secret",
		"CF_ACCOUNT_ID":      "acct",
		"CF_KV_NAMESPACE_ID": "ns",
		"CF_API_TOKEN":       "tok",
		"UNRELATED":          "ignored",
	}))
	require.NoError(t, err)

	env := cfg.Container.Env
	assert.Equal(t, []string{"CF_ACCOUNT_ID", "CF_API_TOKEN", "CF_KV_NAMESPACE_ID", "NOVA_API_KEY"}, env.Keys())
	v, _ := env.Lookup("NOVA_API_KEY")
	assert.Equal(t, "nova-secret", v)
	_, ok := env.Lookup("UNRELATED")
	assert.False(t, ok)
	assert.Empty(t, cfg.Container.MissingEnv)
}

func TestLoad_SingleKeyDescriptor(t *testing.T) {
	cfg, err := Load(NewFlagSet(), envLookup(map[string]string{
		"ROUTER_CONTAINER_ENV": "NOVA_API_KEY",
		"NOVA_API_KEY":         "nova-secret",
		"CF_API_TOKEN":         "tok",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"NOVA_API_KEY"}, cfg.Container.Env.Keys())
}

func TestLoad_EmptyDescriptor(t *testing.T) {
	cfg, err := Load(NewFlagSet(), envLookup(map[string]string{
		"ROUTER_CONTAINER_ENV": "",
		"NOVA_API_KEY":         "nova-secret",
	}))
	require.NoError(t, err)

	assert.Zero(t, cfg.Container.Env.Len())
	assert.Empty(t, cfg.Container.MissingEnv)
}

func TestLoad_MissingKeysStillForwarded(t *testing.T) {
	cfg, err := Load(NewFlagSet(), envLookup(map[string]string{
		"NOVA_API_KEY": "nova-secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Container.Env.Len())
	v, ok := cfg.Container.Env.Lookup("CF_API_TOKEN")
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.Equal(t, []string{"CF_ACCOUNT_ID", "CF_KV_NAMESPACE_ID", "CF_API_TOKEN"}, cfg.Container.MissingEnv)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	fs := NewFlagSet()
	require.NoError(t, fs.Parse([]string{"--container-name", "from-flag", "--container-env", "NOVA_API_KEY"}))

	cfg, err := Load(fs, envLookup(map[string]string{
		"ROUTER_CONTAINER_NAME": "from-env",
		"ROUTER_CONTAINER_ENV":  "A,B",
		"ROUTER_LISTEN":         ":9000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Container.Name)
	assert.Equal(t, []string{"NOVA_API_KEY"}, cfg.Container.EnvKeys)
	assert.Equal(t, ":9000", cfg.Listen)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad container name", map[string]string{"ROUTER_CONTAINER_NAME": "/nope"}},
		{"bad env key", map[string]string{"ROUTER_CONTAINER_ENV": "NOVA-KEY"}},
		{"duplicate env key", map[string]string{"ROUTER_CONTAINER_ENV": "A,A"}},
		{"bad log format", map[string]string{"ROUTER_LOG_FORMAT": "xml"}},
		{"admin shares listener", map[string]string{"ROUTER_LISTEN": ":3000", "ROUTER_ADMIN_LISTEN": ":3000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(NewFlagSet(), envLookup(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestConfig_Definition(t *testing.T) {
	cfg, err := Load(NewFlagSet(), envLookup(map[string]string{
		"ROUTER_CONTAINER_NETWORK": "lighthouse",
		"ROUTER_SOURCE_REPO":       "https://example.com/sky-match.git",
		"ROUTER_SOURCE_DIR":        "container_src",
	}))
	require.NoError(t, err)

	def := cfg.Definition()
	assert.Equal(t, "sky-match-container", def.Identity.String())
	assert.Equal(t, 8080, def.Port)
	assert.Equal(t, "2m", def.SleepAfter)
	assert.Equal(t, "lighthouse", def.Network)
	assert.True(t, def.Source.Enabled())
	assert.Equal(t, "container_src", def.Source.Dir)
	assert.Equal(t, cfg.Container.Env.Keys(), def.Env.Keys())
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "ROUTER_CONTAINER_ENV", EnvName("container-env"))
	assert.Equal(t, "ROUTER_LISTEN", EnvName("listen"))
}

func TestConfig_LoggerConfig(t *testing.T) {
	cfg := Config{Log: LogConfig{Level: "debug", Format: "pretty"}}
	lc := cfg.LoggerConfig()

	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "pretty", lc.Format)
	assert.True(t, lc.WithCaller)
}
