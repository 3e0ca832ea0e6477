package deps

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Listing is the resolved dependency listing written by a build step.
// JSON is accepted as well since it is valid YAML.
//
//	libraries:
//	  - name: com.squareup.okio:okio:3.6.0
//	    files: [/home/me/.gradle/caches/.../okio-jvm-3.6.0.jar]
//	    sources: /home/me/.gradle/caches/.../okio-jvm-3.6.0-sources.jar
type Listing struct {
	Libraries []ListedLibrary `yaml:"libraries" json:"libraries"`
}

// ListedLibrary is one entry of a Listing
type ListedLibrary struct {
	Name    string   `yaml:"name" json:"name"`
	Files   []string `yaml:"files" json:"files"`
	Sources string   `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// LoadListing reads a dependency listing. Relative file paths are resolved
// against the listing's directory.
func LoadListing(path string) ([]Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dependency listing: %w", err)
	}

	var listing Listing
	if err := yaml.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("parsing dependency listing %s: %w", path, err)
	}

	base := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	libs := make([]Library, 0, len(listing.Libraries))
	for _, l := range listing.Libraries {
		lib := Library{
			Name:    l.Name,
			Sources: resolve(l.Sources),
		}

		for _, f := range l.Files {
			lib.Files = append(lib.Files, resolve(f))
		}

		libs = append(libs, lib)
	}

	return libs, nil
}
