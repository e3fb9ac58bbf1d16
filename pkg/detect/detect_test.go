package detect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"podwatch/pkg/config"
	"podwatch/pkg/feed"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Test Podcast</title>
		<item>
			<title>Jane Doe | Scaling product teams</title>
			<link>https://example.com/episodes/1</link>
			<guid>ep-001</guid>
			<pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate>
		</item>
	</channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLatest_RSS(t *testing.T) {
	server := feedServer(t)
	d := New(feed.NewReader(testLogger()), nil, testLogger())

	podcast := &config.Podcast{ID: "show", RSSURL: server.URL, Detect: config.DetectRSS}
	result, err := d.Latest(context.Background(), nil, podcast)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if result.Episode.GUID != "ep-001" {
		t.Errorf("Expected ep-001, got %q", result.Episode.GUID)
	}
	if result.Transcript != "" {
		t.Error("Expected no pre-fetched transcript from RSS detection")
	}
}

// A failed page detection skips the cycle: the feed is never consulted, even
// when one is configured, because its GUIDs do not match page identities and
// a one-off substitution would double-notify the episode later.
func TestLatest_PageFailureDoesNotFallBackToFeed(t *testing.T) {
	feedHits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedHits++
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	d := New(feed.NewReader(testLogger()), nil, testLogger())

	podcast := &config.Podcast{ID: "show", RSSURL: server.URL, Detect: config.DetectPage}
	_, err := d.Latest(context.Background(), nil, podcast)
	if !errors.Is(err, ErrNoEpisode) {
		t.Fatalf("Expected ErrNoEpisode, got %v", err)
	}
	if feedHits != 0 {
		t.Errorf("Expected the feed to stay untouched, got %d fetches", feedHits)
	}
}

func TestLatest_NoEpisode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := New(feed.NewReader(testLogger()), nil, testLogger())
	podcast := &config.Podcast{ID: "show", RSSURL: server.URL, Detect: config.DetectRSS}

	_, err := d.Latest(context.Background(), nil, podcast)
	if !errors.Is(err, ErrNoEpisode) {
		t.Fatalf("Expected ErrNoEpisode, got %v", err)
	}
}
