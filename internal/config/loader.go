package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DECOMPCACHE_THREADS
const EnvPrefix = "DECOMPCACHE"

// flagKeys maps command flags to config keys
var flagKeys = map[string]string{
	"cache-root": "cache_root",
	"threads":    "threads",
	"decompiler": "decompiler_path",
	"java":       "java_path",
	"heap":       "jvm_heap",
	"deps":       "dependency_file",
	"scan":       "scan_dirs",
	"header":     "header",
	"log-level":  "log_level",
	"log-format": "log_format",
	"verbose":    "verbose",
}

// Loader handles configuration loading from various sources
type Loader struct {
	configDir func() (string, error)
	workDir   func() (string, error)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		configDir: os.UserConfigDir,
		workDir:   os.Getwd,
	}
}

// Load loads configuration for a command: defaults, global file, local file,
// environment and finally the command's flags
func (l *Loader) Load(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.setupEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("cache_root", DefaultCacheRoot())
	viper.SetDefault("threads", DefaultThreads)
	viper.SetDefault("java_path", DefaultJavaPath)
	viper.SetDefault("toolchain_roots", DefaultToolchainRoots())
	viper.SetDefault("source_extensions", DefaultSourceExtensions)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("log_format", DefaultLogFormat)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	base, err := l.configDir()
	if err != nil || base == "" {
		return
	}

	globalDir := filepath.Join(base, AppName)

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the nearest .decompcache.* found from the working directory upward
func (l *Loader) loadLocalConfig() {
	dir, err := l.workDir()
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(dir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// setupEnv enables DECOMPCACHE_* environment overrides
func (l *Loader) setupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
