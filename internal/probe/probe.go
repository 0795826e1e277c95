// Package probe performs a one-shot, advisory-only inspection of a project
// tree to label its likely language and type. Nothing in search or
// indexing is gated on the result; failures degrade silently.
package probe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Result is the advisory project label returned by GET /project.
type Result struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

// marker associates a root-level file with the language/type it implies.
type marker struct {
	file     string
	language string
	typ      string
}

// markers is checked in order; the first match wins. Only root-level
// files are inspected — no recursive search, per spec.md §4.B.
var markers = []marker{
	{"go.mod", "go", "module"},
	{"package.json", "javascript", "package"},
	{"Cargo.toml", "rust", "crate"},
	{"pyproject.toml", "python", "project"},
	{"requirements.txt", "python", "project"},
	{"composer.json", "php", "package"},
	{"Gemfile", "ruby", "project"},
}

// Probe inspects root and returns a best-effort label. It never returns
// an error: any failure to read a marker file yields "unknown".
func Probe(root string) Result {
	name := filepath.Base(root)
	if name == "." || name == string(filepath.Separator) {
		if wd, err := os.Getwd(); err == nil {
			name = filepath.Base(wd)
		}
	}

	for _, m := range markers {
		path := filepath.Join(root, m.file)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		result := Result{Name: name, Language: m.language, Type: m.typ}

		if m.file == "go.mod" {
			if mod := parseGoModuleName(data); mod != "" {
				result.Name = mod
			}
		}
		if m.file == "package.json" {
			if pkgName := parsePackageJSONName(data); pkgName != "" {
				result.Name = pkgName
			}
		}

		return result
	}

	if entries := csharpProject(root); entries != "" {
		return Result{Name: entries, Language: "csharp", Type: "project"}
	}

	return Result{Name: name, Language: "unknown", Type: "unknown"}
}

func parseGoModuleName(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func parsePackageJSONName(data []byte) string {
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.Name
}

// csharpProject returns the basename of the first *.csproj file found at
// root, or "" if none exists.
func csharpProject(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".csproj") {
			return strings.TrimSuffix(name, ".csproj")
		}
	}
	return ""
}

