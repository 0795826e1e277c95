package index

import (
	"path/filepath"
	"strings"

	"github.com/superinstance/prism/internal/prismerr"
)

// SafePath resolves relPath against root and rejects it unless the result
// stays within root (spec.md invariant 2, and the get_file path-safety
// rule in §6). It returns the cleaned, forward-slash relative path to use
// as the FileRecord key.
func SafePath(root, relPath string) (string, error) {
	if relPath == "" {
		return "", prismerr.New(prismerr.PathUnsafe, "path must not be empty")
	}
	if filepath.IsAbs(relPath) {
		return "", prismerr.Newf(prismerr.PathUnsafe, "path must be relative: %s", relPath)
	}

	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	joined := filepath.Join(root, cleaned)

	rootWithSep := root + string(filepath.Separator)
	if joined != root && !strings.HasPrefix(joined, rootWithSep) {
		return "", prismerr.Newf(prismerr.PathUnsafe, "path escapes project root: %s", relPath)
	}

	rel, err := filepath.Rel(root, joined)
	if err != nil {
		return "", prismerr.Newf(prismerr.PathUnsafe, "path escapes project root: %s", relPath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", prismerr.Newf(prismerr.PathUnsafe, "path escapes project root: %s", relPath)
	}

	return filepath.ToSlash(rel), nil
}
