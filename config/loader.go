package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/fleetkit/logger"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct .env file path (optional)
}

// LoaderOption is a functional option for LoadInto.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadInto loads configuration for a service into the provided cfg struct.
// It searches for config.yml and .env files in standard locations, binds
// environment variables, and unmarshals the result into cfg.
func LoadInto(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	configFile := lc.ConfigFile
	if configFile == "" {
		configFile = findFile(lc.FileSystem, configSearchPaths(serviceName))
	}
	envFile := lc.EnvFile
	if envFile == "" {
		envFile = findFile(lc.FileSystem, envSearchPaths(serviceName))
	}

	v := viper.New()

	// YAML file first, as the base layer.
	if configFile != "" && lc.FileSystem.Exists(configFile) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("failed to load config file", logger.ErrorFields("config.load", err), logger.Fields("file", configFile))
		}
	}

	// Environment variables override file values.
	v.AutomaticEnv()
	autoBindEnvVars(v)

	// .env file last, then re-bind to pick up its variables.
	if envFile != "" && lc.FileSystem.Exists(envFile) {
		if err := lc.FileSystem.LoadEnv(envFile); err != nil {
			logger.Warn("failed to load .env file", logger.ErrorFields("config.load", err), logger.Fields("file", envFile))
		} else {
			autoBindEnvVars(v)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

// configSearchPaths lists standard config.yml locations for a service.
func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}
}

// envSearchPaths lists standard .env locations for a service.
func envSearchPaths(serviceName string) []string {
	names := []string{fmt.Sprintf(".env.%s", serviceName), ".env"}
	bases := []string{
		fmt.Sprintf("./cmd/%s", serviceName),
		"./config",
		".",
		"..",
	}
	paths := make([]string, 0, len(names)*len(bases))
	for _, name := range names {
		for _, base := range bases {
			paths = append(paths, base+"/"+name)
		}
	}
	return paths
}

func findFile(fs FileSystem, paths []string) string {
	for _, path := range paths {
		if fs.Exists(path) {
			return path
		}
	}
	return ""
}

// autoBindEnvVars binds environment variables to Viper by converting
// UPPER_CASE_WITH_UNDERSCORES keys to the nested key formats Viper expects.
func autoBindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		for _, variant := range envKeyVariants(pair[0]) {
			v.Set(variant, pair[1])
		}
	}
}

// envKeyVariants creates possible key variants for an environment variable.
// Examples:
//
//	CLIENT_TIMEOUT      -> [client_timeout, client.timeout]
//	LOGGING_NO_COLOR    -> [logging_no_color, logging.no.color, logging.no_color]
func envKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")
	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}
	// Progressive nesting: each prefix becomes a dotted path, the rest
	// stays underscore-joined so multi-word leaf keys still resolve.
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}

	seen := make(map[string]bool, len(variants))
	result := make([]string, 0, len(variants))
	for _, item := range variants {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
