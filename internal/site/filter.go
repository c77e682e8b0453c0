package site

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// skipDirs are never descended into.
var skipDirs = []string{".git", ".hg", ".svn", "node_modules"}

func shouldSkipDir(name string) bool {
	for _, s := range skipDirs {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

// matchesAny checks relPath, then its base name, against glob patterns.
func matchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(normalized)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

// ValidPatterns reports the first malformed glob, if any.
func ValidPatterns(patterns []string) (string, bool) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return p, false
		}
	}
	return "", true
}
