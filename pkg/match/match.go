// Package match implements the fuzzy matching rules used to reconcile
// episodes discovered from incompatible sources: feed titles, page link
// text, and archive filenames. The heuristics here are the whole contract -
// fixed token and containment rules, not semantic similarity.
package match

import (
	"path"
	"regexp"
	"strings"
)

// stopWords are skipped when comparing "significant" title words.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"with": true, "by": true, "for": true, "to": true, "of": true,
	"in": true, "on": true,
}

var punctReplacer = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"−", "-", // minus sign
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
)

// Normalize lowercases a title, unifies dash and quote variants, and
// collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = punctReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// TitlesMatch reports whether two titles refer to the same episode. After
// normalization it accepts exact equality, substring containment either way,
// equality of the first five words, or equality of the first three
// significant (non-stop) words.
func TitlesMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	wa, wb := strings.Fields(na), strings.Fields(nb)
	if equalPrefix(wa, wb, 5) {
		return true
	}

	return equalPrefix(significant(wa), significant(wb), 3)
}

func equalPrefix(a, b []string, n int) bool {
	if len(a) > n {
		a = a[:n]
	}
	if len(b) > n {
		b = b[:n]
	}
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func significant(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// ScoreFilenameAgainstName scores how well an archive filename matches a
// guest name: +10 when either contains the other (extension stripped,
// case-insensitive), +5 when every name token appears in the filename, else
// +1 per matching token. Zero means no match; callers must treat that as a
// detection failure, never substitute a guess.
func ScoreFilenameAgainstName(filename, name string) int {
	stem := strings.ToLower(strings.TrimSuffix(filename, path.Ext(filename)))
	target := strings.ToLower(strings.TrimSpace(name))
	if stem == "" || target == "" {
		return 0
	}

	score := 0
	if strings.Contains(stem, target) || strings.Contains(target, stem) {
		score += 10
	}

	tokens := strings.Fields(target)
	matching := 0
	for _, tok := range tokens {
		if strings.Contains(stem, tok) {
			matching++
		}
	}
	if matching == len(tokens) && len(tokens) > 0 {
		score += 5
	} else {
		score += matching
	}

	return score
}

var parentheticalRe = regexp.MustCompile(`\s*\([^)]+\)\s*$`)

// GuestFromTitle extracts a guest name from a "Topic | Guest"-shaped title,
// taking the last pipe-delimited part and stripping a trailing parenthetical
// suffix such as "(Company)". Returns "" when the title has no such shape.
func GuestFromTitle(title string) string {
	if !strings.Contains(title, "|") {
		return ""
	}
	parts := strings.Split(title, "|")
	guest := strings.TrimSpace(parts[len(parts)-1])
	guest = strings.TrimSpace(parentheticalRe.ReplaceAllString(guest, ""))
	if len(guest) <= 2 {
		return ""
	}
	return guest
}

// archivePrefixes are known show prefixes stripped from archive filenames
// before guest-name extraction.
var archivePrefixes = []string{"Lenny's Podcast - ", "Lennys Podcast - ", "LP - "}

// GuestFromFilename derives a guest name from an archive filename. The
// extension and known show prefixes are stripped; when the stem contains
// " - " separators, the part that looks like a name (a run of 1-5
// capitalized words) wins, falling back to the first part. An empty stem
// yields "".
func GuestFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, path.Ext(filename))
	for _, prefix := range archivePrefixes {
		if strings.HasPrefix(name, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	if strings.Contains(name, " - ") {
		parts := strings.Split(name, " - ")
		for _, part := range parts {
			if looksLikeName(part) {
				return strings.TrimSpace(part)
			}
		}
		name = parts[0]
	}

	return strings.TrimSpace(name)
}

func looksLikeName(s string) bool {
	words := strings.Fields(strings.TrimSpace(s))
	if len(words) < 1 || len(words) > 5 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if len(r) == 0 || !isUpper(r[0]) {
			return false
		}
	}
	return true
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

var (
	withRe  = regexp.MustCompile(`(?i)(?:with|featuring|feat\.?|ft\.?)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`)
	colonRe = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+):`)
)

// titleLeadKeywords disqualify a leading pipe segment from being a guest
// name ("How to ... | ..." is a topic, not a person).
var titleLeadKeywords = []string{"how", "what", "why", "the", "episode"}

// GuestNamesFromTitle extracts candidate guest names from an episode title
// using the documented patterns: a leading pipe segment that does not look
// like a topic, "with/featuring <Name>", and a leading "Name:" prefix.
// Results are deduplicated case-insensitively, preserving order.
func GuestNamesFromTitle(title string) []string {
	if title == "" {
		return nil
	}

	var names []string

	if strings.Contains(title, "|") {
		first := strings.TrimSpace(strings.Split(title, "|")[0])
		if first != "" && !containsKeyword(first) {
			names = append(names, first)
		}
	}

	for _, m := range withRe.FindAllStringSubmatch(title, -1) {
		names = append(names, m[1])
	}

	if m := colonRe.FindStringSubmatch(title); m != nil {
		names = append(names, m[1])
	}

	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if len(n) <= 2 || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

func containsKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range titleLeadKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
