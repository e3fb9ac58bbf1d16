// Package archive implements the shared-folder transcript source: listing
// the remote folder through a rendered page, fuzzy-matching files against
// guest names, and downloading plain-text transcripts. For one podcast this
// folder is also the episode-detection source of record, because its feed
// and listing pages block automated access.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"podwatch/pkg/browser"
	"podwatch/pkg/config"
	"podwatch/pkg/domain"
	"podwatch/pkg/httpclient"
	"podwatch/pkg/match"
	"podwatch/pkg/scrape"
)

var (
	ErrNoFiles         = errors.New("no files found in archive folder")
	ErrNoMatchingFile  = errors.New("no archive file matches the guest name")
	ErrNoGuestName     = errors.New("no guest name available for episode")
	ErrUnsupportedFile = errors.New("unsupported archive file type")
	ErrEmptyTranscript = errors.New("downloaded transcript is empty or too short")
)

// settleDelay gives the folder UI time to render its rows after navigation
// or a sort click.
const settleDelay = 5 * time.Second

const sortDelay = 2 * time.Second

// File is one row of the archive folder listing.
type File struct {
	Name     string
	URL      string
	Modified *time.Time
}

// Client fetches transcripts from a shared archive folder.
type Client struct {
	http *httpclient.HTTPClient
	log  *slog.Logger
}

// NewClient creates an archive client.
func NewClient(log *slog.Logger) *Client {
	return &Client{
		http: httpclient.NewClientTimeout(httpclient.BrowserClient, 60*time.Second),
		log:  log,
	}
}

// FetchTranscript downloads the transcript whose filename best matches the
// episode's guest. A zero best score is a hard miss: no file is guessed.
func (c *Client) FetchTranscript(tab context.Context, episode *domain.Episode, podcast *config.Podcast) (string, error) {
	guest := guestName(episode)
	if guest == "" {
		return "", fmt.Errorf("%w: %s", ErrNoGuestName, episode.Title)
	}

	c.log.Info("looking for archive transcript", "guest", guest)

	files, err := c.ListFiles(tab, podcast.ArchiveURL, false)
	if err != nil {
		return "", err
	}

	best := BestMatch(files, guest)
	if best == nil {
		return "", fmt.Errorf("%w: %s", ErrNoMatchingFile, guest)
	}
	c.log.Info("matched archive file", "file", best.Name)

	return c.Download(tab, best)
}

// DetectAndFetchLatest discovers the newest episode from the archive folder
// and downloads its transcript in one pass. The folder is sorted through
// the remote UI's Modified control (clicked twice for descending order)
// because the listing rows do not expose raw timestamps reliably. The
// synthesized episode's GUID is derived from the filename, so repeated
// detection of the same file is idempotent.
func (c *Client) DetectAndFetchLatest(tab context.Context, podcast *config.Podcast) (*domain.ArchiveEpisodeResult, error) {
	c.log.Info("detecting latest episode from archive", "podcast", podcast.ID)

	files, err := c.ListFiles(tab, podcast.ArchiveURL, true)
	if err != nil {
		return nil, err
	}

	newest := files[0]
	c.log.Info("newest archive file", "file", newest.Name)

	guest := match.GuestFromFilename(newest.Name)
	if guest == "" {
		guest = strings.TrimSuffix(newest.Name, path.Ext(newest.Name))
	}

	transcript, err := c.Download(tab, &newest)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", newest.Name, err)
	}

	episode := domain.Episode{
		GUID:       "dropbox-" + newest.Name,
		PodcastID:  podcast.ID,
		Title:      fmt.Sprintf("%s | %s", podcast.Name, guest),
		Published:  newest.Modified,
		EpisodeURL: podcast.Website,
		Guests:     []domain.Guest{{Name: guest}},
	}

	// Enrichment is a best-effort overlay; a failure here never blocks the
	// base result.
	if err := c.enrichFromShowPage(tab, &episode, guest, podcast); err != nil {
		c.log.Warn("could not enrich episode from show page", "error", err)
	}

	return &domain.ArchiveEpisodeResult{
		Episode:    episode,
		Transcript: transcript,
		Filename:   newest.Name,
	}, nil
}

// ListFiles loads the archive folder and parses its rows. With sort
// enabled, the Modified header is clicked twice to reach newest-first
// order before the listing is read.
func (c *Client) ListFiles(tab context.Context, archiveURL string, sortByModified bool) ([]File, error) {
	html, err := browser.NavigateHTML(tab, archiveURL, settleDelay)
	if err != nil {
		return nil, err
	}

	if sortByModified {
		if err := browser.ClickByText(tab, "Modified", sortDelay); err == nil {
			if err := browser.ClickByText(tab, "Modified", sortDelay); err == nil {
				c.log.Info("sorted archive files by modified date")
			}
			if snap, serr := browser.Snapshot(tab); serr == nil {
				html = snap
			}
		} else {
			c.log.Warn("could not sort archive by modified date", "error", err)
		}
	}

	files := ParseListing(html)
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	c.log.Info("listed archive files", "count", len(files))
	return files, nil
}

// ParseListing extracts file rows from the folder page HTML. The remote UI
// renders rows in several structurally different ways, so three strategies
// are tried in order: explicit table rows, a flat link scan, and raw href
// path parsing. All failing yields an empty list, never an error.
func ParseListing(html string) []File {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if files := parseTableRows(doc); len(files) > 0 {
		return files
	}
	if files := parseLinkScan(doc); len(files) > 0 {
		return files
	}
	return parseHrefPaths(doc)
}

func parseTableRows(doc *goquery.Document) []File {
	var files []File
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find(`a[href*=".txt"]`).First()
		if link.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok || !strings.Contains(href, ".txt") {
			return
		}

		name := linkFileName(link)
		if name == "" {
			return
		}

		var modified *time.Time
		// The modified date sits in the second column when present.
		if cell := row.Find("td").Eq(1); cell.Length() > 0 {
			modified = parseListingDate(strings.TrimSpace(cell.Text()))
		}

		files = append(files, File{
			Name:     name,
			URL:      absoluteArchiveURL(href),
			Modified: modified,
		})
	})
	return files
}

func parseLinkScan(doc *goquery.Document) []File {
	var files []File
	doc.Find(`a[href*=".txt"]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || !strings.Contains(href, ".txt") {
			return
		}
		name := linkFileName(link)
		if name == "" {
			return
		}
		files = append(files, File{Name: name, URL: absoluteArchiveURL(href)})
	})
	return files
}

func parseHrefPaths(doc *goquery.Document) []File {
	var files []File
	doc.Find(`a[href*="/scl/fo/"]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || !strings.Contains(href, ".txt") {
			return
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		for _, part := range strings.Split(parsed.Path, "/") {
			if !strings.Contains(part, ".txt") {
				continue
			}
			name, err := url.PathUnescape(part)
			if err != nil {
				name = part
			}
			files = append(files, File{Name: name, URL: absoluteArchiveURL(href)})
			break
		}
	})
	return files
}

// linkFileName reads the display name, preferring the button nested inside
// the row link over the raw link text.
func linkFileName(link *goquery.Selection) string {
	if button := link.Find("button").First(); button.Length() > 0 {
		return strings.TrimSpace(button.Text())
	}
	return strings.TrimSpace(link.Text())
}

func absoluteArchiveURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return "https://www.dropbox.com" + href
}

// BestMatch returns the file with the strictly highest fuzzy score against
// the guest name, or nil when the best score is zero.
func BestMatch(files []File, guest string) *File {
	var best *File
	bestScore := 0
	for i := range files {
		score := match.ScoreFilenameAgainstName(files[i].Name, guest)
		if score > bestScore {
			bestScore = score
			best = &files[i]
		}
	}
	return best
}

// Download fetches a file's content. The share link is rewritten for direct
// download. Only plain-text files are decoded; other extensions are
// explicit not-found cases, never silently mis-decoded.
func (c *Client) Download(ctx context.Context, file *File) (string, error) {
	downloadURL := directDownloadURL(file.URL)
	c.log.Info("downloading archive file", "file", file.Name)

	if ext := strings.ToLower(path.Ext(file.Name)); ext != ".txt" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}

	body, _, err := c.http.GetBody(ctx, downloadURL)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}

	transcript := string(body)
	if len(transcript) <= 100 {
		return "", fmt.Errorf("%w: %d chars", ErrEmptyTranscript, len(transcript))
	}
	return transcript, nil
}

// directDownloadURL flips the share link's dl parameter so the response is
// the file body instead of a preview page.
func directDownloadURL(fileURL string) string {
	if strings.Contains(fileURL, "dl=0") {
		return strings.Replace(fileURL, "dl=0", "dl=1", 1)
	}
	if strings.Contains(fileURL, "?dl=") || strings.Contains(fileURL, "&dl=") {
		return fileURL
	}
	if strings.Contains(fileURL, "?") {
		return fileURL + "&dl=1"
	}
	return fileURL + "?dl=1"
}

// guestName picks the guest to match files against: the first known guest,
// else one parsed from a "Topic | Guest"-shaped title.
func guestName(episode *domain.Episode) string {
	if len(episode.Guests) > 0 {
		return episode.Guests[0].Name
	}
	return match.GuestFromTitle(episode.Title)
}

// enrichFromShowPage overlays the synthesized episode with metadata from
// the show's public listing: a clean title, publish date, and guest profile
// link. Each step is optional.
func (c *Client) enrichFromShowPage(tab context.Context, episode *domain.Episode, guest string, podcast *config.Podcast) error {
	if podcast.ShowPage == "" {
		return errors.New("no show page configured")
	}

	listing, err := browser.NavigateHTML(tab, podcast.ShowPage, 3*time.Second)
	if err != nil {
		return err
	}

	link, err := scrape.FirstEpisodeLink(listing, podcast.ShowPage)
	if err != nil {
		return err
	}

	page, err := browser.NavigateHTML(tab, link.URL, 2*time.Second)
	if err != nil {
		return err
	}

	meta, err := scrape.EpisodeMeta(page)
	if err != nil {
		return err
	}

	if meta.Title != "" {
		if !guestMatchesTitle(guest, meta.Title) {
			c.log.Warn("guest name mismatch between archive and show page",
				"guest", guest, "page_title", meta.Title)
		}
		episode.Title = meta.Title
	}
	if meta.Published != nil {
		episode.Published = meta.Published
	}
	episode.EpisodeURL = link.URL
	if meta.ProfileURL != "" && len(episode.Guests) > 0 {
		episode.Guests[0].ProfileURL = meta.ProfileURL
	}
	return nil
}

// guestMatchesTitle sanity-checks that a majority of guest name tokens
// appear in the page title.
func guestMatchesTitle(guest, title string) bool {
	titleLower := strings.ToLower(title)
	parts := strings.Fields(strings.ToLower(guest))
	if len(parts) == 0 {
		return false
	}
	matches := 0
	for _, p := range parts {
		if strings.Contains(titleLower, p) {
			matches++
		}
	}
	return matches >= len(parts)/2+1
}

// parseListingDate handles the folder UI's modified column: relative words
// plus a few absolute formats. Years are sometimes omitted; those dates get
// the current year.
func parseListingDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(raw) {
	case "today":
		return &midnight
	case "yesterday":
		y := midnight.AddDate(0, 0, -1)
		return &y
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	if t.Year() == 0 {
		t = t.AddDate(now.Year(), 0, 0)
	}
	return &t
}
