// Package textutil contains small text transforms shared across the
// monitor: HTML stripping, whitespace normalization, truncation, and
// message chunking.
package textutil

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	wsRe         = regexp.MustCompile(`\s+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(` {2,}`)
	linkedinRe   = regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/in/[a-zA-Z0-9_-]+/?`)
	sentenceRe   = regexp.MustCompile(`(?:[.!?])\s+`)
)

// CleanHTML strips tags and decodes entities, collapsing whitespace into
// single spaces.
func CleanHTML(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = tagRe.ReplaceAllString(text, " ")
	text = wsRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CollapseBlank squeezes runs of blank lines down to one empty line and runs
// of spaces down to one space, preserving paragraph structure.
func CollapseBlank(text string) string {
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate shortens text to at most max characters, preferring to cut at a
// word boundary, and appends suffix when anything was removed.
func Truncate(text string, max int, suffix string) string {
	if text == "" || len(text) <= max {
		return text
	}
	cut := text[:max-len(suffix)]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + suffix
}

// LinkedInURLs extracts LinkedIn profile URLs from text, deduplicated while
// preserving first-seen order.
func LinkedInURLs(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, u := range linkedinRe.FindAllString(text, -1) {
		key := strings.ToLower(strings.TrimRight(u, "/"))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}

// ParseDuration converts "HH:MM:SS", "MM:SS", or a bare seconds count into a
// duration. Returns zero and false when the string cannot be parsed.
func ParseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, false
		}
		nums = append(nums, n)
	}
	var secs int
	switch len(nums) {
	case 3:
		secs = nums[0]*3600 + nums[1]*60 + nums[2]
	case 2:
		secs = nums[0]*60 + nums[1]
	case 1:
		secs = nums[0]
	default:
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// FormatDate renders a timestamp for display, or "Unknown date" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "Unknown date"
	}
	return t.Format("January 2, 2006")
}

// SplitMessage breaks text into chunks of at most max characters, splitting
// at paragraph boundaries first and sentence boundaries inside oversized
// paragraphs. Chunk order matches the original text.
func SplitMessage(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var current string

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		current = ""
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		if len(current)+len(paragraph)+2 <= max {
			if current == "" {
				current = paragraph
			} else {
				current += "\n\n" + paragraph
			}
			continue
		}
		flush()

		if len(paragraph) <= max {
			current = paragraph
			continue
		}

		// Paragraph alone exceeds the cap: fall back to sentences.
		for _, sentence := range splitSentences(paragraph) {
			if len(current)+len(sentence)+1 > max {
				flush()
				current = sentence
			} else if current == "" {
				current = sentence
			} else {
				current += " " + sentence
			}
		}
	}
	flush()

	return chunks
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	idxs := sentenceRe.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, loc := range idxs {
		// loc[0]+1 keeps the terminating punctuation character.
		end := loc[0] + 1
		out = append(out, strings.TrimSpace(text[start:end]))
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, strings.TrimSpace(text[start:]))
	}
	return out
}

// FormatByteSize renders a byte count as megabytes for log output.
func FormatByteSize(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
