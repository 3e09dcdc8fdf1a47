package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts file lookups so tests can inject fixtures.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

type osFileSystem struct{}

func (osFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// loaderOptions holds the optional overrides for Load.
type loaderOptions struct {
	fs         FileSystem
	configFile string
	envFile    string
}

// LoaderOption customizes Load.
type LoaderOption func(*loaderOptions)

// WithFileSystem injects a filesystem, mainly for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(o *loaderOptions) { o.fs = fs }
}

// WithConfigFile pins the YAML file instead of searching for one.
func WithConfigFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile pins the .env file instead of searching for one.
func WithEnvFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load populates cfg for a service. It reads the YAML config file if one is
// found, loads a .env file into the process environment, then lets real
// environment variables override both. Env keys map to nested config keys
// with underscores, e.g. DEPENDENCIES_PAYMENTS_RETRY_MAX_ATTEMPTS.
func Load(service string, cfg any, opts ...LoaderOption) error {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = osFileSystem{}
	}

	configFile := o.configFile
	if configFile == "" {
		configFile = findFirst(o.fs, configSearchPaths(service))
	}
	envFile := o.envFile
	if envFile == "" {
		envFile = findFirst(o.fs, envSearchPaths(service))
	}

	if envFile != "" && o.fs.Exists(envFile) {
		if err := o.fs.LoadEnv(envFile); err != nil {
			return fmt.Errorf("config: loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()

	if configFile != "" && o.fs.Exists(configFile) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	bindEnv(v)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshaling for service %s: %w", service, err)
	}
	return nil
}

// configSearchPaths lists where a YAML config may live, most specific first.
func configSearchPaths(service string) []string {
	return []string{
		fmt.Sprintf("./config/%s.yml", service),
		fmt.Sprintf("./cmd/%s/config.yml", service),
		"./config/config.yml",
		"./config.yml",
	}
}

// envSearchPaths lists where a .env file may live, most specific first.
func envSearchPaths(service string) []string {
	return []string{
		fmt.Sprintf(".env.%s", service),
		fmt.Sprintf("./config/.env.%s", service),
		"./config/.env",
		".env",
	}
}

// bindEnv pushes every environment variable into viper as explicit values,
// which take precedence over the config file. Unmarshal does not consult
// automatic env lookups, so the keys have to be materialized.
func bindEnv(v *viper.Viper) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants maps FOO_BAR_BAZ onto the nested config keys it could
// address. Each underscore may either separate nesting levels or belong to
// a key name (max_attempts vs retry.max_attempts), so all combinations are
// generated, capped to keep pathological names cheap.
func envKeyVariants(env string) []string {
	parts := strings.Split(strings.ToLower(env), "_")
	variants := []string{parts[0]}
	for _, part := range parts[1:] {
		next := make([]string, 0, len(variants)*2)
		for _, prefix := range variants {
			next = append(next, prefix+"."+part, prefix+"_"+part)
		}
		if len(next) > 64 {
			next = next[:64]
		}
		variants = next
	}
	return variants
}

func findFirst(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}
