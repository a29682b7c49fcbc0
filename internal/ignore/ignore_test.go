package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIgnoreMatch(t *testing.T) {
	dir := t.TempDir()
	ig := filepath.Join(dir, ".privauditignore")
	content := "node_modules/\n*.pem\n# comment\n\nsecret.env\n"
	if err := os.WriteFile(ig, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(ig)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"node_modules/pkg/index.js": true,
		"certs/key.pem":             true,
		"secret.env":                true,
		"src/app.go":                false,
	}
	for p, want := range cases {
		if got := m.Match(p); got != want {
			t.Fatalf("Match(%q)=%v want %v", p, got, want)
		}
	}
}

func TestIgnoreMissingFile(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), FileName))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if m.Match("anything.txt") {
		t.Fatalf("empty matcher must not ignore")
	}
}

func TestIgnoreNestedGlobs(t *testing.T) {
	m := Parse(bufio.NewScanner(strings.NewReader("docs/**/draft-*.md\nfixtures/\n")))
	cases := map[string]bool{
		"docs/a/b/draft-1.md": true,
		"docs/final.md":       false,
		"x/fixtures/y.txt":    true,
		"fixtures.txt":        false,
	}
	for p, want := range cases {
		if got := m.Match(p); got != want {
			t.Fatalf("Match(%q)=%v want %v", p, got, want)
		}
	}
}
