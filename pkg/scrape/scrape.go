// Package scrape holds the heuristic HTML extraction used by page-based
// episode detection and transcript acquisition. Everything operates on
// rendered-page snapshots, so the fragile selector and marker strings live
// in one place and can be exercised against recorded fixture pages instead
// of live network calls.
package scrape

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"podwatch/pkg/match"
	"podwatch/pkg/textutil"
)

var (
	ErrNoEpisodeLink = errors.New("no episode link found on page")
	ErrNoTranscript  = errors.New("no transcript section found on page")
)

// minContentLength is the threshold below which an extracted block is
// considered too short or too generic to be a transcript.
const minContentLength = 500

// minParagraphLength filters boilerplate when concatenating paragraphs from
// the main content region.
const minParagraphLength = 100

// headingMarker introduces the transcript-like section on episode pages.
const headingMarker = "Episode Highlights"

// stopMarkers terminate the section at the first footer/nav block that
// follows it.
var stopMarkers = []string{
	"See All",
	"More Episodes",
	"You Might Also Like",
	"Customer Reviews",
	"Top Podcasts",
}

// sectionSelectors are candidate regions tried when the heading marker is
// absent, in order.
var sectionSelectors = []string{
	`[data-testid="episode-description"]`,
	".episode-description",
	`section[class*="description"]`,
	`[class*="notes"]`,
	`[class*="episode-details"]`,
}

// Link is an episode link discovered on a show listing page.
type Link struct {
	URL   string
	Title string
}

// FirstEpisodeLink returns the newest episode link on a show listing page.
// It tries episode-specific href patterns first, then a generic link scan.
func FirstEpisodeLink(html, baseURL string) (*Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	selectors := []string{`a[href*="?i="]`, `a[href*="/episode/"]`}
	for _, sel := range selectors {
		if link := firstLink(doc, sel, baseURL); link != nil {
			return link, nil
		}
	}

	// Generic fallback: the first substantial link inside the main content
	// region. Navigation links are short; episode titles are not.
	var found *Link
	doc.Find(`main a[href], [role="main"] a[href]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) < 20 {
			return true
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		found = &Link{URL: resolveURL(baseURL, href), Title: text}
		return false
	})
	if found != nil {
		return found, nil
	}

	return nil, ErrNoEpisodeLink
}

// EpisodeLinkByTitle finds the link on a show listing page whose text
// fuzzily matches the episode title. There is deliberately no fallback to
// the listing page itself: a wrong-episode transcript is worse than none.
func EpisodeLinkByTitle(html, baseURL, title string) (*Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var found *Link
	doc.Find(`a[href*="?i="], a[href*="/episode/"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" || !match.TitlesMatch(title, text) {
			return true
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		found = &Link{URL: resolveURL(baseURL, href), Title: text}
		return false
	})
	if found != nil {
		return found, nil
	}

	return nil, ErrNoEpisodeLink
}

func firstLink(doc *goquery.Document, selector, baseURL string) *Link {
	var found *Link
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		found = &Link{
			URL:   resolveURL(baseURL, href),
			Title: strings.TrimSpace(sel.Text()),
		}
		return false
	})
	return found
}

// TranscriptSection extracts transcript-like text from an episode page. In
// order: (a) body text after the heading marker trimmed at the first stop
// marker, (b) a candidate region with enough text, (c) combined long
// paragraphs inside the main content region, with readability extraction as
// the last candidate. The first method to clear the content threshold wins;
// anything shorter is a not-found, never a partial result.
func TranscriptSection(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse episode page: %w", err)
	}

	if text := sectionAfterHeading(doc); text != "" {
		return text, nil
	}

	for _, sel := range sectionSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(text) > minContentLength {
			return textutil.CollapseBlank(text), nil
		}
	}

	if text := combinedParagraphs(doc); text != "" {
		return text, nil
	}

	// Last candidate region: the readability extraction of the whole page.
	if article, err := readability.FromReader(strings.NewReader(html), nil); err == nil {
		text := strings.TrimSpace(article.TextContent)
		if len(text) > minContentLength {
			return textutil.CollapseBlank(text), nil
		}
	}

	return "", ErrNoTranscript
}

func sectionAfterHeading(doc *goquery.Document) string {
	body := doc.Find("body").First().Text()
	_, after, ok := strings.Cut(body, headingMarker)
	if !ok {
		return ""
	}

	for _, marker := range stopMarkers {
		if before, _, found := strings.Cut(after, marker); found {
			after = before
		}
	}

	if len(strings.TrimSpace(after)) <= 200 {
		return ""
	}
	return textutil.CollapseBlank(after)
}

func combinedParagraphs(doc *goquery.Document) string {
	main := doc.Find(`main, [role="main"]`).First()
	if main.Length() == 0 {
		return ""
	}

	var long []string
	main.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) > minParagraphLength {
			long = append(long, text)
		}
	})

	combined := strings.Join(long, "\n\n")
	if len(combined) <= minContentLength {
		return ""
	}
	return textutil.CollapseBlank(combined)
}

// Meta is episode metadata pulled from an episode page.
type Meta struct {
	Title      string
	Published  *time.Time
	ProfileURL string
}

var agoPrefixRe = regexp.MustCompile(`(?i)^\d+[DHM]\s+AGO\s+`)

var datePatternRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`),
	regexp.MustCompile(`(?i)(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)\s+\d{1,2},?\s+\d{4}`),
}

var titleSelectors = []string{
	`h1[class*="headings"]`,
	`h1[class*="title"]`,
	"h1",
	`[data-testid="episode-title"]`,
}

var dateSelectors = []string{
	"time[datetime]",
	"time",
	"[datetime]",
	".episode-date",
	`[class*="date"]`,
	`[class*="Date"]`,
}

var descSelectors = []string{
	`[data-testid="description"]`,
	".product-hero-desc",
	`section[class*="description"]`,
}

// EpisodeMeta extracts the clean title, publish date, and guest profile URL
// from an episode page. Each field degrades independently; a page that
// yields only a title is still useful.
func EpisodeMeta(html string) (*Meta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse episode page: %w", err)
	}

	meta := &Meta{}

	for _, sel := range titleSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(text) > 10 {
			meta.Title = agoPrefixRe.ReplaceAllString(text, "")
			break
		}
	}

	for _, sel := range dateSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		raw, ok := node.Attr("datetime")
		if !ok {
			raw = node.Text()
		}
		if t := parsePageDate(raw); t != nil {
			meta.Published = t
			break
		}
	}

	// Fallback: scan the main content for a bare date pattern.
	if meta.Published == nil {
		body := doc.Find("main").First().Text()
		for _, re := range datePatternRes {
			if m := re.FindString(body); m != "" {
				if t := parsePageDate(m); t != nil {
					meta.Published = t
					break
				}
			}
		}
	}

	for _, sel := range descSelectors {
		text := doc.Find(sel).First().Text()
		if urls := textutil.LinkedInURLs(text); len(urls) > 0 {
			meta.ProfileURL = urls[0]
			break
		}
	}

	return meta, nil
}

// parsePageDate handles the loose date formats pages render. Years are
// sometimes omitted; those dates get the current year.
func parsePageDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	if t.Year() == 0 {
		t = t.AddDate(time.Now().Year(), 0, 0)
	}
	return &t
}

func resolveURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
