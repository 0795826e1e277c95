package index

import "strings"

// invertedIndex maps a lowercased token to the set of relative paths whose
// content or path contains that token. It is rebuilt from FileRecords on
// load/build and mutated incrementally on upsert/remove; never persisted
// (spec.md §3, InvertedIndex entity).
type invertedIndex struct {
	postings map[string]map[string]struct{}
}

func newInvertedIndex() *invertedIndex {
	return &invertedIndex{postings: make(map[string]map[string]struct{})}
}

// tokenize splits s into lowercased maximal runs of [A-Za-z0-9_].
func tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range s {
		if isTokenRune(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

// index adds path's postings for every token found in its content and path.
func (ix *invertedIndex) index(path string, fr *FileRecord) {
	seen := make(map[string]struct{})
	for _, tok := range tokenize(fr.Content) {
		seen[tok] = struct{}{}
	}
	for _, tok := range tokenize(fr.Path) {
		seen[tok] = struct{}{}
	}
	for tok := range seen {
		set, ok := ix.postings[tok]
		if !ok {
			set = make(map[string]struct{})
			ix.postings[tok] = set
		}
		set[path] = struct{}{}
	}
}

// remove drops path from every posting list it appears in.
func (ix *invertedIndex) remove(path string) {
	for tok, set := range ix.postings {
		if _, ok := set[path]; ok {
			delete(set, path)
			if len(set) == 0 {
				delete(ix.postings, tok)
			}
		}
	}
}

// candidates returns the union of posting sets for tokens, plus ok=false
// if any token has no postings at all (signaling the caller should fall
// back to a full scan, per spec.md §4.D step 2).
func (ix *invertedIndex) candidates(tokens []string) (map[string]struct{}, bool) {
	union := make(map[string]struct{})
	for _, tok := range tokens {
		set, ok := ix.postings[tok]
		if !ok || len(set) == 0 {
			return nil, false
		}
		for path := range set {
			union[path] = struct{}{}
		}
	}
	return union, true
}
