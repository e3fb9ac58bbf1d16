package scrape

import (
	"errors"
	"strings"
	"testing"
)

func TestFirstEpisodeLink_QueryPattern(t *testing.T) {
	html := `<html><body>
		<a href="/us/podcast/show/id123?i=1000999">3D AGO The newest episode about growth</a>
		<a href="/us/podcast/show/id123?i=1000998">Older episode about pricing</a>
	</body></html>`

	link, err := FirstEpisodeLink(html, "https://podcasts.example.com/us/podcast/show/id123")
	if err != nil {
		t.Fatalf("FirstEpisodeLink failed: %v", err)
	}
	if link.URL != "https://podcasts.example.com/us/podcast/show/id123?i=1000999" {
		t.Errorf("Expected resolved first link, got %q", link.URL)
	}
	if !strings.Contains(link.Title, "newest episode") {
		t.Errorf("Expected first link title, got %q", link.Title)
	}
}

func TestFirstEpisodeLink_GenericFallback(t *testing.T) {
	html := `<html><body><main>
		<a href="/nav">Home</a>
		<a href="/shows/ep-99">A substantial episode title with enough length</a>
	</main></body></html>`

	link, err := FirstEpisodeLink(html, "https://example.com")
	if err != nil {
		t.Fatalf("FirstEpisodeLink failed: %v", err)
	}
	if link.URL != "https://example.com/shows/ep-99" {
		t.Errorf("Expected generic main-region link, got %q", link.URL)
	}
}

func TestFirstEpisodeLink_None(t *testing.T) {
	_, err := FirstEpisodeLink(`<html><body><a href="/nav">Home</a></body></html>`, "https://example.com")
	if !errors.Is(err, ErrNoEpisodeLink) {
		t.Fatalf("Expected ErrNoEpisodeLink, got %v", err)
	}
}

func TestEpisodeLinkByTitle(t *testing.T) {
	html := `<html><body>
		<a href="/show?i=1">Pricing strategy deep dive | Jane Doe</a>
		<a href="/show?i=2">Growth loops explained | John Smith</a>
	</body></html>`

	link, err := EpisodeLinkByTitle(html, "https://example.com", "Growth loops explained")
	if err != nil {
		t.Fatalf("EpisodeLinkByTitle failed: %v", err)
	}
	if link.URL != "https://example.com/show?i=2" {
		t.Errorf("Expected fuzzy-matched link, got %q", link.URL)
	}
}

// A listing page with no matching link is a hard miss. The caller must not
// receive the listing page itself as a substitute.
func TestEpisodeLinkByTitle_NoMatch(t *testing.T) {
	html := `<html><body><a href="/show?i=1">Completely unrelated content</a></body></html>`
	_, err := EpisodeLinkByTitle(html, "https://example.com", "Growth loops explained")
	if !errors.Is(err, ErrNoEpisodeLink) {
		t.Fatalf("Expected ErrNoEpisodeLink, got %v", err)
	}
}

func TestTranscriptSection_HeadingMarker(t *testing.T) {
	body := strings.Repeat("Jane talked about activation metrics and retention curves. ", 10)
	html := `<html><body><div>Episode Highlights</div><div>` + body + `</div><div>See All</div><div>footer junk</div></body></html>`

	text, err := TranscriptSection(html)
	if err != nil {
		t.Fatalf("TranscriptSection failed: %v", err)
	}
	if !strings.Contains(text, "activation metrics") {
		t.Error("Expected section content in extracted text")
	}
	if strings.Contains(text, "footer junk") {
		t.Error("Expected content after stop marker to be trimmed")
	}
}

func TestTranscriptSection_SelectorCandidate(t *testing.T) {
	body := strings.Repeat("Long enough episode notes with substance. ", 20)
	html := `<html><body><div class="episode-description">` + body + `</div></body></html>`

	text, err := TranscriptSection(html)
	if err != nil {
		t.Fatalf("TranscriptSection failed: %v", err)
	}
	if len(text) <= 500 {
		t.Errorf("Expected substantial text, got %d chars", len(text))
	}
}

func TestTranscriptSection_CombinedParagraphs(t *testing.T) {
	para := `<p>` + strings.Repeat("A paragraph with well over one hundred characters of real transcript content goes here. ", 2) + `</p>`
	html := `<html><body><main>` + strings.Repeat(para, 5) + `<p>short</p></main></body></html>`

	text, err := TranscriptSection(html)
	if err != nil {
		t.Fatalf("TranscriptSection failed: %v", err)
	}
	if strings.Contains(text, "short") {
		t.Error("Expected short boilerplate paragraphs to be excluded")
	}
}

// Too little content must be a not-found, never a partial transcript.
func TestTranscriptSection_TooShort(t *testing.T) {
	_, err := TranscriptSection(`<html><body><p>tiny page</p></body></html>`)
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("Expected ErrNoTranscript, got %v", err)
	}
}

func TestEpisodeMeta(t *testing.T) {
	html := `<html><body>
		<h1 class="product-title">2D AGO How to build a growth team | Jane Doe</h1>
		<time datetime="2025-03-03T10:00:00Z">March 3</time>
		<section class="description-block" data-testid="description">
			Jane Doe leads growth. https://www.linkedin.com/in/jane-doe
		</section>
	</body></html>`

	meta, err := EpisodeMeta(html)
	if err != nil {
		t.Fatalf("EpisodeMeta failed: %v", err)
	}
	if meta.Title != "How to build a growth team | Jane Doe" {
		t.Errorf("Expected relative-age prefix stripped, got %q", meta.Title)
	}
	if meta.Published == nil || meta.Published.Year() != 2025 {
		t.Errorf("Expected published date 2025, got %v", meta.Published)
	}
	if !strings.Contains(meta.ProfileURL, "jane-doe") {
		t.Errorf("Expected LinkedIn profile URL, got %q", meta.ProfileURL)
	}
}

func TestEpisodeMeta_DatePatternFallback(t *testing.T) {
	html := `<html><body>
		<h1>An episode title of reasonable length</h1>
		<main>Published on March 3, 2025 by the show.</main>
	</body></html>`

	meta, err := EpisodeMeta(html)
	if err != nil {
		t.Fatalf("EpisodeMeta failed: %v", err)
	}
	if meta.Published == nil || meta.Published.Year() != 2025 {
		t.Errorf("Expected date scanned from main content, got %v", meta.Published)
	}
}

func TestResolveURL(t *testing.T) {
	if got := resolveURL("https://example.com/base/", "/x"); got != "https://example.com/x" {
		t.Errorf("resolveURL = %q", got)
	}
	if got := resolveURL("https://example.com", "https://other.com/y"); got != "https://other.com/y" {
		t.Errorf("Expected absolute href unchanged, got %q", got)
	}
}
