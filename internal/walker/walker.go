// Package walker implements the recursive file walk that produces the
// initial set of indexed files, honoring the include/exclude policy and
// size cap shared with the watcher.
package walker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// MaxFileSize is the size cap above which files are skipped (spec.md §4.C).
const MaxFileSize = 1 << 20 // 1 MiB

// includePatterns is the fixed suffix set the walker and watcher share,
// compiled as globs the way the teacher's discovery.go compiles its
// codePatterns/docsPatterns.
var includePatterns = compileIncludeGlobs([]string{
	"*.js", "*.ts", "*.jsx", "*.tsx", "*.py", "*.go", "*.rs", "*.java",
	"*.cs", "*.php", "*.rb", "*.md", "*.json", "*.yaml", "*.yml",
})

// excludeSegments is the fixed set of path segments that hide a subtree.
var excludeSegments = map[string]bool{
	"node_modules":   true,
	".git":           true,
	"dist":           true,
	"build":          true,
	"coverage":       true,
	".next":          true,
	".prism":         true,
	".claude-plugin": true,
}

func compileIncludeGlobs(patterns []string) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			// patterns is a fixed, known-valid literal set; a compile
			// failure here would be a programming error.
			panic(err)
		}
		globs = append(globs, g)
	}
	return globs
}

// Entry is one file discovered by Walk, described relative to root.
type Entry struct {
	AbsPath string
	RelPath string // forward-slash, relative to root
	Info    os.FileInfo
}

// Walk traverses root recursively, returning every file that passes the
// include/exclude/size policy. Read failures and individual stat errors
// are reported via onError and otherwise skipped; they never abort the
// walk. The walk never ascends above root, and symlinks are followed
// only when their resolved target stays within root.
func Walk(root string, onError func(path string, err error)) ([]Entry, error) {
	var entries []Entry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if onError != nil {
				onError(path, err)
			}
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && ShouldExcludeDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		resolved, ok := resolveWithinRoot(root, path, info)
		if !ok {
			return nil
		}

		if !HasIncludedExtension(relPath) {
			return nil
		}
		if resolved.Size() > MaxFileSize {
			return nil
		}

		entries = append(entries, Entry{AbsPath: path, RelPath: relPath, Info: resolved})
		return nil
	})

	return entries, err
}

// HasIncludedExtension reports whether relPath's basename matches one of
// the fixed include glob patterns, evaluated case-sensitively.
func HasIncludedExtension(relPath string) bool {
	base := filepath.Base(relPath)
	for _, g := range includePatterns {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// ShouldExcludeDir reports whether relDir (or any segment within it)
// matches the fixed exclude set.
func ShouldExcludeDir(relDir string) bool {
	if relDir == "." || relDir == "" {
		return false
	}
	for _, seg := range strings.Split(relDir, "/") {
		if excludeSegments[seg] {
			return true
		}
	}
	return false
}

// resolveWithinRoot stats path, resolving the full symlink chain, and
// reports ok=false if the resolved target escapes root or is a directory.
func resolveWithinRoot(root, path string, info os.FileInfo) (os.FileInfo, bool) {
	if info.Mode()&os.ModeSymlink == 0 {
		return info, true
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}

	rootWithSep := root + string(filepath.Separator)
	if target != root && !strings.HasPrefix(target, rootWithSep) {
		return nil, false
	}

	targetInfo, err := os.Stat(target)
	if err != nil || targetInfo.IsDir() {
		return nil, false
	}
	return targetInfo, true
}
