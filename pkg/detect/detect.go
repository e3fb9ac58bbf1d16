// Package detect discovers the newest episode of a podcast through its
// configured source: the RSS feed, a rendered show page, or the transcript
// archive folder. Sources are mutually exclusive per podcast; a failed cycle
// is skipped rather than detected through a different source, whose episode
// identity would not match the one stored from a healthy cycle.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podwatch/pkg/archive"
	"podwatch/pkg/browser"
	"podwatch/pkg/config"
	"podwatch/pkg/domain"
	"podwatch/pkg/feed"
	"podwatch/pkg/match"
	"podwatch/pkg/scrape"
)

var ErrNoEpisode = errors.New("no episode found")

const (
	showPageSettle = 3 * time.Second
	episodeSettle  = 2 * time.Second
)

// Result is a detected episode. Transcript is non-empty when the detection
// source also produced the transcript, letting the caller skip a second
// acquisition pass.
type Result struct {
	Episode    *domain.Episode
	Transcript string
}

// Detector finds the newest episode of a podcast.
type Detector struct {
	feeds   *feed.Reader
	archive *archive.Client
	log     *slog.Logger
}

// New creates a detector.
func New(feeds *feed.Reader, archiveClient *archive.Client, log *slog.Logger) *Detector {
	return &Detector{
		feeds:   feeds,
		archive: archiveClient,
		log:     log,
	}
}

// Latest returns the podcast's newest episode via its configured detection
// mode. A failed archive or page detection yields ErrNoEpisode for this
// cycle; falling through to the feed would mint a different GUID for the
// same episode and double-notify once the configured source recovers.
func (d *Detector) Latest(ctx context.Context, br *browser.Browser, podcast *config.Podcast) (*Result, error) {
	switch podcast.Detect {
	case config.DetectArchive:
		result, err := d.fromArchive(br, podcast)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoEpisode, podcast.ID, err)
		}
		return result, nil
	case config.DetectPage:
		result, err := d.fromPage(br, podcast)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoEpisode, podcast.ID, err)
		}
		return result, nil
	}

	episode, err := d.feeds.FetchLatest(ctx, podcast)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoEpisode, podcast.ID, err)
	}
	return &Result{Episode: episode}, nil
}

func (d *Detector) fromArchive(br *browser.Browser, podcast *config.Podcast) (*Result, error) {
	tab, cancel := br.Page()
	defer cancel()

	res, err := d.archive.DetectAndFetchLatest(tab, podcast)
	if err != nil {
		return nil, err
	}
	return &Result{Episode: &res.Episode, Transcript: res.Transcript}, nil
}

// fromPage detects the newest episode from the show's rendered listing page
// and enriches it from the linked episode page.
func (d *Detector) fromPage(br *browser.Browser, podcast *config.Podcast) (*Result, error) {
	if podcast.ShowPage == "" {
		return nil, errors.New("no show page configured")
	}

	tab, cancel := br.Page()
	defer cancel()

	listing, err := browser.NavigateHTML(tab, podcast.ShowPage, showPageSettle)
	if err != nil {
		return nil, err
	}

	link, err := scrape.FirstEpisodeLink(listing, podcast.ShowPage)
	if err != nil {
		return nil, err
	}

	episode := &domain.Episode{
		GUID:       link.URL,
		PodcastID:  podcast.ID,
		Title:      link.Title,
		EpisodeURL: link.URL,
	}

	page, err := browser.NavigateHTML(tab, link.URL, episodeSettle)
	if err != nil {
		d.log.Warn("could not load episode page for metadata", "url", link.URL, "error", err)
		d.fillGuests(episode)
		return &Result{Episode: episode}, nil
	}

	if meta, err := scrape.EpisodeMeta(page); err == nil {
		if meta.Title != "" {
			episode.Title = meta.Title
		}
		episode.Published = meta.Published
		if meta.ProfileURL != "" {
			episode.Guests = []domain.Guest{{
				Name:       match.GuestFromTitle(episode.Title),
				ProfileURL: meta.ProfileURL,
			}}
		}
	}

	d.fillGuests(episode)
	return &Result{Episode: episode}, nil
}

func (d *Detector) fillGuests(episode *domain.Episode) {
	if len(episode.Guests) > 0 {
		return
	}
	for _, name := range match.GuestNamesFromTitle(episode.Title) {
		episode.Guests = append(episode.Guests, domain.Guest{Name: name})
	}
}
