// Package files holds small helpers for files privaudit creates in a
// working tree.
package files

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// AppendIgnore ensures pattern is present in .gitignore at repoRoot. It
// creates the file if missing. Idempotent.
func AppendIgnore(repoRoot, pattern string) error {
	path := filepath.Join(repoRoot, ".gitignore")
	existing := map[string]bool{}
	endsWithNewline := true
	if b, err := os.ReadFile(path); err == nil {
		sc := bufio.NewScanner(strings.NewReader(string(b)))
		for sc.Scan() {
			existing[strings.TrimSpace(sc.Text())] = true
		}
		endsWithNewline = len(b) == 0 || b[len(b)-1] == '\n'
	}
	if existing[pattern] {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open .gitignore")
	}
	defer f.Close()
	line := pattern + "\n"
	if !endsWithNewline {
		line = "\n" + line
	}
	_, err = f.WriteString(line)
	return errors.Wrap(err, "append .gitignore")
}

// DefaultIgnores returns patterns a new .privauditignore starts with: the
// ledger directory and files privaudit itself wrote.
func DefaultIgnores() []string {
	return []string{
		".privaudit/",
		"*.redacted.*",
		"*.prom",
	}
}

// RedactedName returns the default output name for path: name.redacted.ext
// beside the input.
func RedactedName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".redacted" + ext
}

// IsRedactedOutput reports whether path looks like a RedactedName output.
func IsRedactedOutput(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".redacted") || strings.Contains(base, ".redacted.")
}
