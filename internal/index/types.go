// Package index implements the persistent snapshot, in-memory inverted
// index, and scoring/search engine at the core of the daemon (spec.md §3-4.D).
package index

// SnapshotVersion is the current persisted snapshot format version.
const SnapshotVersion = "1.0"

// Snapshot is the single JSON document persisted at <root>/.prism/index.json.
type Snapshot struct {
	Version     string      `json:"version"`
	IndexedAt   string      `json:"indexed_at"`
	ProjectRoot string      `json:"project_root"`
	FileCount   int         `json:"file_count"`
	Files       []FileRecord `json:"files"`
}

// FileRecord is one indexed file.
type FileRecord struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Modified  string `json:"modified"`
	Lines     int    `json:"lines"`
	Content   string `json:"content"`
	Extension string `json:"extension"`
	Language  string `json:"language"`
}

// FileSummary is the trimmed view returned by list_files.
type FileSummary struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Lines    int    `json:"lines"`
	Size     int64  `json:"size"`
}

// ScoredHit is one search result.
type ScoredHit struct {
	File     string  `json:"file"`
	Line     int     `json:"line"`
	Content  string  `json:"content"`
	Language string  `json:"language"`
	Context  string  `json:"context"`
	Score    float64 `json:"score"`
}

// languageByExtension is the fixed extension → language tag map
// (spec.md §3, FileRecord.language).
var languageByExtension = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".cs":   "csharp",
	".php":  "php",
	".rb":   "ruby",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
}

// LanguageForExtension returns the language tag for ext (which must
// include its leading dot), or "unknown" if ext isn't in the fixed map.
func LanguageForExtension(ext string) string {
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "unknown"
}
