package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/ignore"
)

// Target is one document selected for processing.
type Target struct {
	// Path is the file to open.
	Path string
	// Rel is Path relative to the root it was found under, slash-separated.
	// For files named directly it is the base name.
	Rel string
}

// WalkConfig selects files under a directory.
type WalkConfig struct {
	Root         string
	IncludeGlobs string
	ExcludeGlobs string
	// MaxBytes skips larger files when positive.
	MaxBytes int64
	// NoDefaultExcludes disables the built-in directory and suffix skips.
	NoDefaultExcludes bool
}

// Walk traverses cfg.Root and invokes handle for each eligible file. The
// root's .privauditignore is honored. Cancellation stops the walk.
func Walk(ctx context.Context, cfg WalkConfig, handle func(Target) error) error {
	ign, _ := ignore.Load(filepath.Join(cfg.Root, ignore.FileName))
	return filepath.WalkDir(cfg.Root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(cfg.Root, p)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			// directory patterns match anything beneath the directory
			if p != cfg.Root && ((!cfg.NoDefaultExcludes && isDefaultDirExcluded(d.Name())) || ign.Match(rel+"/x")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !allowedByGlobs(rel, cfg.IncludeGlobs, cfg.ExcludeGlobs) || ign.Match(rel) {
			return nil
		}
		if rel == ignore.FileName {
			return nil
		}
		if !cfg.NoDefaultExcludes && isDefaultFileExcluded(strings.ToLower(rel)) {
			return nil
		}
		if cfg.MaxBytes > 0 {
			if info, err := d.Info(); err == nil && info.Size() > cfg.MaxBytes {
				return nil
			}
		}
		return handle(Target{Path: p, Rel: rel})
	})
}

// Collect expands paths into targets. Directories are walked with cfg's
// filters; files named directly are always included.
func Collect(ctx context.Context, paths []string, cfg WalkConfig) ([]Target, error) {
	var out []Target
	seen := map[string]bool{}
	add := func(t Target) error {
		if !seen[t.Path] {
			seen[t.Path] = true
			out = append(out, t)
		}
		return nil
	}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
		if !fi.IsDir() {
			_ = add(Target{Path: p, Rel: filepath.Base(p)})
			continue
		}
		wc := cfg
		wc.Root = p
		if err := Walk(ctx, wc, add); err != nil {
			return nil, errors.Wrapf(err, "walk %s", p)
		}
	}
	return out, nil
}

func looksBinary(b []byte) bool {
	const sniff = 800
	n := sniff
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return true
		}
	}
	return false
}
