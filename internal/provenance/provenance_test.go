package provenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:acme/records.git"}})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	file := filepath.Join(dir, "docs", "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a@b.com\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("docs/a.txt")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	r := NewResolver()
	info, ok := r.Lookup(file)
	require.True(t, ok)
	assert.Equal(t, hash.String(), info.Commit)
	assert.Equal(t, "docs/a.txt", info.Path)
	assert.Equal(t, "acme/records", info.Remote)
	assert.NotEmpty(t, info.Branch)

	meta := info.Meta()
	assert.Equal(t, hash.String(), meta[KeyCommit])
	assert.Equal(t, "docs/a.txt", meta[KeyPath])
}

func TestLookup_NotARepo(t *testing.T) {
	file := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, ok := NewResolver().Lookup(file)
	assert.False(t, ok)
}

func TestShortRemote(t *testing.T) {
	assert.Equal(t, "acme/records", shortRemote("https://github.com/acme/records.git"))
	assert.Equal(t, "acme/records", shortRemote("git@github.com:acme/records.git"))
	assert.Equal(t, "", Info{}.Meta()[KeyCommit])
}
