// Package feed fetches and parses podcast RSS feeds into episode records.
// It encapsulates the encoding and anti-blocking fallbacks some feed hosts
// require: browser-like headers first, an alternate client identity on 403
// or network failure, and Unicode punctuation normalization before the XML
// parser sees the payload.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"podwatch/pkg/config"
	"podwatch/pkg/domain"
	"podwatch/pkg/httpclient"
	"podwatch/pkg/match"
	"podwatch/pkg/textutil"
)

var ErrNoEpisodes = errors.New("feed contains no episodes")

// Reader fetches and parses RSS/Atom feeds.
type Reader struct {
	parser   *gofeed.Parser
	client   *httpclient.HTTPClient
	fallback *httpclient.HTTPClient
	log      *slog.Logger
}

// NewReader creates a feed reader.
func NewReader(log *slog.Logger) *Reader {
	return &Reader{
		parser:   gofeed.NewParser(),
		client:   httpclient.NewClient(httpclient.FeedClient),
		fallback: httpclient.NewClient(httpclient.FallbackClient),
		log:      log,
	}
}

// FetchLatest returns the single newest episode of the podcast's feed.
func (r *Reader) FetchLatest(ctx context.Context, podcast *config.Podcast) (*domain.Episode, error) {
	episodes, err := r.fetch(ctx, podcast, 1)
	if err != nil {
		return nil, err
	}
	return &episodes[0], nil
}

// FetchRecent returns up to count of the newest episodes, newest first.
func (r *Reader) FetchRecent(ctx context.Context, podcast *config.Podcast, count int) ([]domain.Episode, error) {
	return r.fetch(ctx, podcast, count)
}

func (r *Reader) fetch(ctx context.Context, podcast *config.Podcast, count int) ([]domain.Episode, error) {
	content, err := r.fetchContent(ctx, podcast.RSSURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for %s: %w", podcast.ID, err)
	}

	parsed, err := r.parser.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("parse feed for %s: %w", podcast.ID, err)
	}
	if len(parsed.Items) == 0 {
		return nil, ErrNoEpisodes
	}

	if count <= 0 || count > len(parsed.Items) {
		count = len(parsed.Items)
	}

	episodes := make([]domain.Episode, 0, count)
	for _, item := range parsed.Items[:count] {
		episodes = append(episodes, r.parseItem(item, podcast))
	}
	return episodes, nil
}

// fetchContent retrieves the raw feed payload. On HTTP 403 or any network
// failure it retries once with the fallback client identity before giving
// up - at least one monitored feed host blocks browser-alike agents.
func (r *Reader) fetchContent(ctx context.Context, url string) (string, error) {
	content, err := r.fetchWith(ctx, r.client, url)
	if err == nil {
		return content, nil
	}

	r.log.Warn("feed fetch failed, retrying with fallback identity", "url", url, "error", err)
	content, ferr := r.fetchWith(ctx, r.fallback, url)
	if ferr != nil {
		return "", errors.Join(err, ferr)
	}
	return content, nil
}

func (r *Reader) fetchWith(ctx context.Context, client *httpclient.HTTPClient, url string) (string, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", err
	}
	return normalizePunctuation(buf.String()), nil
}

// punctReplacer substitutes Unicode punctuation that breaks some feed
// parsers when it leaks into XML attribute values.
var punctReplacer = strings.NewReplacer(
	"—", "-", // em dash
	"–", "-", // en dash
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"…", "...", // ellipsis
)

func normalizePunctuation(content string) string {
	return punctReplacer.Replace(content)
}

// parseItem maps a feed entry into an Episode.
func (r *Reader) parseItem(item *gofeed.Item, podcast *config.Podcast) domain.Episode {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}

	title := item.Title
	if title == "" {
		title = "Untitled Episode"
	}

	description := item.Content
	if description == "" {
		description = item.Description
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed
	}

	var audioURL string
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "audio/") {
			audioURL = enc.URL
			break
		}
	}

	var duration string
	if item.ITunesExt != nil {
		duration = item.ITunesExt.Duration
	}

	return domain.Episode{
		GUID:        guid,
		PodcastID:   podcast.ID,
		Title:       title,
		Description: description,
		Published:   published,
		EpisodeURL:  item.Link,
		AudioURL:    audioURL,
		Guests:      ExtractGuests(title, description),
		Duration:    duration,
	}
}

// ExtractGuests derives guest records from an episode title and description:
// names from the title patterns, profile links matched by name tokens, and a
// short role description when the show notes state one.
func ExtractGuests(title, description string) []domain.Guest {
	clean := textutil.CleanHTML(description)
	names := match.GuestNamesFromTitle(title)
	profileURLs := textutil.LinkedInURLs(description)

	var guests []domain.Guest
	for _, name := range names {
		guest := domain.Guest{Name: name}

		parts := strings.Fields(strings.ToLower(name))
		for _, u := range profileURLs {
			lower := strings.ToLower(u)
			for _, part := range parts {
				if len(part) > 2 && strings.Contains(lower, part) {
					guest.ProfileURL = u
					break
				}
			}
			if guest.ProfileURL != "" {
				break
			}
		}

		guest.Description = guestDescription(name, clean)
		guests = append(guests, guest)
	}

	// No names in the title: fall back to names derived from profile URLs.
	if len(guests) == 0 {
		for _, u := range profileURLs {
			if name := nameFromProfileURL(u); name != "" {
				guests = append(guests, domain.Guest{Name: name, ProfileURL: u})
			}
		}
	}

	return guests
}

// guestDescription looks for "Name is a ..." or "Name, role at ..." shapes
// in the cleaned show notes.
func guestDescription(name, description string) string {
	if name == "" || description == "" {
		return ""
	}

	patterns := []string{
		`(?i)` + regexp.QuoteMeta(name) + `\s+is\s+(?:a\s+|the\s+)?([^.]+)`,
		`(?i)` + regexp.QuoteMeta(name) + `,\s+([^.]+?)(?:\.|,|$)`,
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(description); m != nil {
			desc := strings.TrimSpace(m[1])
			if len(desc) < 150 {
				return desc
			}
		}
	}
	return ""
}

var profileSlugRe = regexp.MustCompile(`(?i)linkedin\.com/in/([a-zA-Z0-9-]+)`)

// nameFromProfileURL turns a profile slug like "jane-doe-123" into
// "Jane Doe".
func nameFromProfileURL(url string) string {
	m := profileSlugRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	slug := regexp.MustCompile(`\d+`).ReplaceAllString(m[1], "")
	var parts []string
	for _, p := range strings.Split(slug, "-") {
		if p == "" {
			continue
		}
		parts = append(parts, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(parts, " ")
}
