// Package ignore reads .privauditignore files: one pattern per line, '#'
// comments, a trailing '/' for directories, and doublestar globs.
package ignore

import (
	"bufio"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
)

// FileName is the ignore file looked up in a batch root.
const FileName = ".privauditignore"

// Matcher reports whether a slash-separated relative path is ignored. The
// zero value ignores nothing.
type Matcher struct {
	dirs  []string
	globs []string
}

// Load parses the ignore file at p. A missing or unreadable file yields an
// empty Matcher alongside the error.
func Load(p string) (Matcher, error) {
	f, err := os.Open(p)
	if err != nil {
		return Matcher{}, errors.Wrap(err, "open ignore file")
	}
	defer f.Close()
	return Parse(bufio.NewScanner(f)), nil
}

// Parse reads patterns from sc.
func Parse(sc *bufio.Scanner) Matcher {
	var m Matcher
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		if strings.HasSuffix(line, "/") {
			m.dirs = append(m.dirs, strings.TrimSuffix(line, "/"))
			continue
		}
		m.globs = append(m.globs, line)
	}
	return m
}

// Match reports whether rel is ignored.
func (m Matcher) Match(rel string) bool {
	rel = strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "./")
	segs := strings.Split(rel, "/")
	for _, d := range m.dirs {
		for i := 0; i < len(segs)-1; i++ {
			if ok, _ := doublestar.Match(d, strings.Join(segs[:i+1], "/")); ok {
				return true
			}
			if ok, _ := doublestar.Match(d, segs[i]); ok {
				return true
			}
		}
	}
	base := path.Base(rel)
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if !strings.Contains(g, "/") {
			if ok, _ := doublestar.Match(g, base); ok {
				return true
			}
		}
	}
	return false
}
