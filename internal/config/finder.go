package config

import (
	"os"
	"path/filepath"
)

// LocalConfigName is the base name of a project-local config file
const LocalConfigName = "." + AppName

// configExtensions in lookup order
var configExtensions = []string{"yml", "yaml", "json", "toml"}

// projectMarkers end the upward search: a config above the project's
// top directory belongs to some other workspace
var projectMarkers = []string{
	"settings.gradle",
	"settings.gradle.kts",
	".git",
}

// FindLocalConfig returns the nearest .decompcache.* at or above dir,
// searching no higher than the enclosing project's top directory.
func FindLocalConfig(dir string) string {
	for {
		if path := configIn(dir); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir || isProjectTop(dir) {
			return ""
		}

		dir = parent
	}
}

func configIn(dir string) string {
	for _, ext := range configExtensions {
		path := filepath.Join(dir, LocalConfigName+"."+ext)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}

	return ""
}

func isProjectTop(dir string) bool {
	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}

	return false
}
