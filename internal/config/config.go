package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/decompcache/internal/utils"
)

// Default configuration values
const (
	DefaultThreads   = 2
	DefaultJavaPath  = "java"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultVerbose   = false

	// AppName names the global config and cache directories
	AppName = "decompcache"
)

// DefaultSourceExtensions are the file suffixes exposed through source roots
var DefaultSourceExtensions = []string{".java", ".kt"}

// Holds the configuration options for decompcache
type Config struct {
	// Root directory of the cache (manifest.json + <hash>/ trees)
	CacheRoot string

	// Decompiler worker count
	Threads int

	// Path to the Vineflower (or FernFlower-compatible) jar
	DecompilerPath string

	// JVM launcher used to run the decompiler
	JavaPath string

	// -Xmx for the decompiler JVM (e.g. 2g). Empty keeps the JVM default.
	JVMHeap string

	// Resolved dependency listing written by the build
	DependencyFile string

	// Maven or Gradle repository directories to scan for artifacts
	ScanDirs []string

	// Path prefixes of platform-provided artifacts (JDK, Android SDK)
	ToolchainRoots []string

	// File suffixes visible through exposed roots
	SourceExtensions []string

	// Optional comment prepended to every decompiled file
	Header string

	// slog level: debug, info, warn, error
	LogLevel string

	// text or json
	LogFormat string

	// Enable verbose output
	Verbose bool
}

// DefaultCacheRoot returns the user-scoped cache directory
func DefaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+AppName)
	}

	return "." + AppName
}

// DefaultToolchainRoots returns the JDK and Android SDK locations from the environment
func DefaultToolchainRoots() []string {
	var roots []string
	for _, env := range []string{"JAVA_HOME", "ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if v := os.Getenv(env); v != "" {
			roots = append(roots, v)
		}
	}

	return roots
}

func Load() (*Config, error) {
	cfg := &Config{
		CacheRoot:        viper.GetString("cache_root"),
		Threads:          viper.GetInt("threads"),
		DecompilerPath:   viper.GetString("decompiler_path"),
		JavaPath:         viper.GetString("java_path"),
		JVMHeap:          viper.GetString("jvm_heap"),
		DependencyFile:   viper.GetString("dependency_file"),
		ScanDirs:         viper.GetStringSlice("scan_dirs"),
		ToolchainRoots:   viper.GetStringSlice("toolchain_roots"),
		SourceExtensions: viper.GetStringSlice("source_extensions"),
		Header:           viper.GetString("header"),
		LogLevel:         viper.GetString("log_level"),
		LogFormat:        viper.GetString("log_format"),
		Verbose:          viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = DefaultCacheRoot()
	}

	if cfg.JavaPath == "" {
		cfg.JavaPath = DefaultJavaPath
	}

	if len(cfg.SourceExtensions) == 0 {
		cfg.SourceExtensions = append([]string(nil), DefaultSourceExtensions...)
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	root, err := absPath(c.CacheRoot)
	if err != nil {
		return fmt.Errorf("invalid cache root: %v", err)
	}
	c.CacheRoot = root

	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}

	if c.JVMHeap != "" {
		if _, err := utils.ParseHeapSize(c.JVMHeap); err != nil {
			return fmt.Errorf("invalid jvm_heap: %v", err)
		}
	}

	// Resolve decompiler path
	if c.DecompilerPath != "" {
		abs, err := absPath(c.DecompilerPath)
		if err != nil {
			return fmt.Errorf("invalid decompiler path: %v", err)
		}

		c.DecompilerPath = abs
	}

	// Resolve dependency listing path
	if c.DependencyFile != "" {
		abs, err := absPath(c.DependencyFile)
		if err != nil {
			return fmt.Errorf("invalid dependency file path: %v", err)
		}

		c.DependencyFile = abs
	}

	if c.ScanDirs, err = absPaths(c.ScanDirs); err != nil {
		return fmt.Errorf("invalid scan directory: %v", err)
	}

	if c.ToolchainRoots, err = absPaths(c.ToolchainRoots); err != nil {
		return fmt.Errorf("invalid toolchain root: %v", err)
	}

	exts := make([]string, 0, len(c.SourceExtensions))
	for _, ext := range c.SourceExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		exts = append(exts, ext)
	}
	c.SourceExtensions = exts

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}

	return nil
}

func absPath(path string) (string, error) {
	return filepath.Abs(utils.ExpandHome(path))
}

func absPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}

		abs, err := absPath(p)
		if err != nil {
			return nil, err
		}

		out = append(out, abs)
	}

	return out, nil
}
