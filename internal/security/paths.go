// Package security guards file names derived from ledger contents. Benchmark
// names come from CSV rows that may have been edited by hand, so anything
// built from them is sanitised and checked against its output directory.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxFilenameLen = 128

// SanitizeFilename maps s onto ASCII letters, digits, '.', '_' and '-'.
// Runs of other characters become a single underscore, leading and trailing
// dots and underscores are trimmed, and the result is capped in length.
// An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			if !pendingUnderscore {
				b.WriteByte('_')
				pendingUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		pendingUnderscore = false
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ValidatePathWithinDirectory returns an error if path, once made absolute
// and with symlinks in its existing prefix resolved, lies outside dir.
func ValidatePathWithinDirectory(path, dir string) error {
	canonicalPath, err := canonical(path)
	if err != nil {
		return err
	}
	canonicalDir, err := canonical(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", path, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of p.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	existing, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}
