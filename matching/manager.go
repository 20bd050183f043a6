package matching

import (
	"path"
	"strings"

	"github.com/viant/omnicm/matching/option"
)

// Manager decides which directory entries are hidden from listings
type Manager struct {
	options *option.Options
}

// New creates a new exclusion manager with the given options
func New(opts ...option.Option) *Manager {
	return &Manager{options: option.NewOptions(opts...)}
}

// IsExcluded checks if a slash separated logical path should be hidden
func (m *Manager) IsExcluded(logical string, isDir bool, size int64) bool {
	if !isDir && m.options.MaxFileSize > 0 && size > m.options.MaxFileSize {
		return true
	}
	logical = strings.Trim(logical, "/")
	if logical == "" {
		return false
	}
	segments := strings.Split(logical, "/")
	for _, pattern := range m.options.Exclusions {
		pattern = strings.TrimSpace(pattern)
		// Skip comments or empty lines
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if isExcluded(segments, isDir, pattern) {
			return true
		}
	}
	return false
}

func isExcluded(segments []string, isDir bool, pattern string) bool {
	dirOnly := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") && !anchored {
		// basename pattern: matches any segment, the last one only if the kind fits
		for i, segment := range segments {
			last := i == len(segments)-1
			if last && dirOnly && !isDir {
				continue
			}
			if matched, _ := path.Match(pattern, segment); matched {
				return true
			}
		}
		return false
	}
	patternSegments := strings.Split(pattern, "/")
	for end := 1; end <= len(segments); end++ {
		if end == len(segments) && dirOnly && !isDir {
			break
		}
		if matchSegments(patternSegments, segments[:end]) {
			return true
		}
	}
	return false
}

// matchSegments matches glob segments where "**" spans any number of path segments
func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segments); i++ {
			if matchSegments(pattern[1:], segments[i:]) {
				return true
			}
		}
		return false
	}
	if len(segments) == 0 {
		return false
	}
	if matched, _ := path.Match(pattern[0], segments[0]); !matched {
		return false
	}
	return matchSegments(pattern[1:], segments[1:])
}
