package index

import (
	"sort"
	"strings"
)

// DefaultSearchLimit is applied when a caller omits limit.
const DefaultSearchLimit = 10

// MaxSearchLimit is the upper bound on requested results (spec.md §4.D).
const MaxSearchLimit = 100

// search runs the scoring algorithm from spec.md §4.D against the given
// ordered file list and inverted index. files must be in persisted/stable
// order; hits break score ties by that order (natural order of discovery).
func search(files []*FileRecord, ix *invertedIndex, query string, limit int) []ScoredHit {
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	lowerQuery := strings.ToLower(query)
	tokens := tokenize(query)

	var candidatePaths map[string]struct{}
	fullScan := true
	if len(tokens) > 0 {
		if union, ok := (ix.candidates(tokens)); ok {
			candidatePaths = union
			fullScan = false
		}
	}

	var hits []ScoredHit
	for _, fr := range files {
		if !fullScan {
			if _, ok := candidatePaths[fr.Path]; !ok {
				continue
			}
		}
		hits = append(hits, scoreFile(fr, lowerQuery)...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// scoreFile emits one ScoredHit per matching line in fr, per spec.md §4.D.
func scoreFile(fr *FileRecord, lowerQuery string) []ScoredHit {
	lines := strings.Split(fr.Content, "\n")
	lowerBasename := strings.ToLower(fr.Name)
	lowerPath := strings.ToLower(fr.Path)

	var hits []ScoredHit
	for i, line := range lines {
		lowerLine := strings.ToLower(line)
		if !strings.Contains(lowerLine, lowerQuery) {
			continue
		}

		score := 0.5
		if strings.Contains(lowerBasename, lowerQuery) {
			score += 0.2
		}
		if strings.Contains(lowerPath, lowerQuery) {
			score += 0.1
		}
		score += 0.2 / (1 + float64(len(line))/100)
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}

		hits = append(hits, ScoredHit{
			File:     fr.Path,
			Line:     i + 1,
			Content:  strings.TrimSpace(line),
			Language: fr.Language,
			Context:  surroundingContext(lines, i),
			Score:    score,
		})
	}
	return hits
}

// surroundingContext returns the raw two-lines-before through two-lines-after
// window around line index i, joined by "\n".
func surroundingContext(lines []string, i int) string {
	start := i - 2
	if start < 0 {
		start = 0
	}
	end := i + 3
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
