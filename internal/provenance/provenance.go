// Package provenance resolves git metadata for source documents so ledger
// entries can say which commit a redacted file came from.
package provenance

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
)

// Meta keys added to ledger operations.
const (
	KeyCommit = "git_commit"
	KeyBranch = "git_branch"
	KeyPath   = "git_path"
	KeyRemote = "git_remote"
)

// Info describes where a file sits in a repository. Zero fields are unknown.
type Info struct {
	Commit string
	Branch string
	// Path is slash-separated and relative to the worktree root.
	Path   string
	Remote string
}

// Meta returns the non-empty fields as ledger meta entries.
func (i Info) Meta() map[string]string {
	m := map[string]string{}
	for k, v := range map[string]string{KeyCommit: i.Commit, KeyBranch: i.Branch, KeyPath: i.Path, KeyRemote: i.Remote} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

type repoInfo struct {
	ok     bool
	root   string
	commit string
	branch string
	remote string
}

// Resolver looks up repository metadata, caching per directory. It is safe
// for concurrent use.
type Resolver struct {
	mu   sync.Mutex
	dirs map[string]repoInfo
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{dirs: map[string]repoInfo{}}
}

// Lookup returns metadata for file. It is best-effort: ok is false when the
// file is not inside a git worktree or the repository cannot be read.
func (r *Resolver) Lookup(file string) (Info, bool) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return Info{}, false
	}
	dir := filepath.Dir(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	ri := r.repo(dir)
	if !ri.ok {
		return Info{}, false
	}
	info := Info{Commit: ri.commit, Branch: ri.branch, Remote: ri.remote}
	if rel, err := filepath.Rel(ri.root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		info.Path = filepath.ToSlash(rel)
	}
	return info, true
}

func (r *Resolver) repo(dir string) repoInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ri, ok := r.dirs[dir]; ok {
		return ri
	}
	ri := open(dir)
	r.dirs[dir] = ri
	return ri
}

func open(dir string) repoInfo {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return repoInfo{}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return repoInfo{}
	}
	root := wt.Filesystem.Root()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	ri := repoInfo{ok: true, root: root}
	if head, err := repo.Head(); err == nil {
		ri.commit = head.Hash().String()
		if head.Name().IsBranch() {
			ri.branch = head.Name().Short()
		}
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			ri.remote = shortRemote(urls[0])
		}
	}
	return ri
}

// shortRemote keeps owner/name of common remote URL forms.
func shortRemote(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.IndexByte(s, '/'); j >= 0 {
			return s[j+1:]
		}
		return s
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
