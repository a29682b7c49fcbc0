package engine

import (
	"path/filepath"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/privaudit/privaudit/internal/files"
)

var defaultExcludeDirs = map[string]bool{
	".git":         true,
	".privaudit":   true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
}

// suffixes that never hold document text
var defaultExcludeFileSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico",
	".pdf", ".zip", ".gz", ".tar", ".tgz", ".7z", ".zst",
	".jar", ".class", ".exe", ".dll", ".so", ".dylib",
	".wasm", ".pyc",
}

var defaultExcludeFileNames = map[string]bool{
	".DS_Store": true,
}

func isDefaultDirExcluded(name string) bool {
	return defaultExcludeDirs[name]
}

func isDefaultFileExcluded(lowerRel string) bool {
	for _, s := range defaultExcludeFileSuffixes {
		if strings.HasSuffix(lowerRel, s) {
			return true
		}
	}
	if files.IsRedactedOutput(lowerRel) {
		return true
	}
	return defaultExcludeFileNames[filepath.Base(lowerRel)]
}

// allowedByGlobs returns true if relPath passes the comma-separated include
// and exclude lists. An empty include list allows everything.
func allowedByGlobs(relPath, include, exclude string) bool {
	rp := filepath.ToSlash(relPath)
	if includes := parseGlobsList(include); len(includes) > 0 && !matchAnyGlob(rp, includes) {
		return false
	}
	if excludes := parseGlobsList(exclude); len(excludes) > 0 && matchAnyGlob(rp, excludes) {
		return false
	}
	return true
}

func parseGlobsList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p, trimGlobPrefix(p))
		}
	}
	return out
}

// matchAnyGlob tries each glob against the full path and the base name.
func matchAnyGlob(pathToMatch string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, pathToMatch); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, filepath.Base(pathToMatch)); ok {
			return true
		}
	}
	return false
}

// trimGlobPrefix drops a leading "**/" so "**/*.txt" also matches top-level
// files.
func trimGlobPrefix(g string) string {
	return strings.TrimPrefix(g, "**/")
}
