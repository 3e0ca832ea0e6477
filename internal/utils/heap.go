package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseHeapSize parses a JVM heap size such as "512m", "4g" or "1048576"
// into bytes. Suffixes k, m, g and t are case-insensitive.
func ParseHeapSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty heap size")
	}

	multiplier := int64(1)
	switch strings.ToLower(s[len(s)-1:]) {
	case "k":
		multiplier = 1 << 10
	case "m":
		multiplier = 1 << 20
	case "g":
		multiplier = 1 << 30
	case "t":
		multiplier = 1 << 40
	}

	digits := s
	if multiplier > 1 {
		digits = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid heap size %q", s)
	}

	if n > (1<<62)/multiplier {
		return 0, fmt.Errorf("heap size %q too large", s)
	}

	return n * multiplier, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
