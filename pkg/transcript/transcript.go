// Package transcript routes each episode to its configured transcript
// strategy. The strategy set is closed: a podcast declares page, archive, or
// audio at configuration time, and an unknown mode is a configuration error
// rather than a silent fallback.
package transcript

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
	"podwatch/pkg/scrape"
	"podwatch/pkg/transcribe"
)

var ErrUnknownMode = errors.New("unknown transcript mode")

const (
	showPageSettle = 3 * time.Second
	episodeSettle  = 2 * time.Second
)

// Router dispatches transcript acquisition by podcast configuration.
type Router struct {
	archive *archive.Client
	audio   *transcribe.Transcriber
	log     *slog.Logger

	// startBrowser allocates a temporary browser for calls made without an
	// active one.
	startBrowser func(ctx context.Context) (*browser.Browser, error)
}

// NewRouter creates a transcript router over the three strategies.
func NewRouter(archiveClient *archive.Client, audio *transcribe.Transcriber, log *slog.Logger) *Router {
	return &Router{
		archive:      archiveClient,
		audio:        audio,
		log:          log,
		startBrowser: browser.Start,
	}
}

// Fetch acquires a transcript for the episode using the podcast's configured
// strategy. The page and archive strategies need rendered pages: they use the
// caller's browser when one is active, or start a temporary one released
// before returning. Each call gets its own tab, closed before returning.
func (r *Router) Fetch(ctx context.Context, br *browser.Browser, episode *domain.Episode, podcast *config.Podcast) (string, error) {
	r.log.Info("fetching transcript",
		"podcast", podcast.ID, "mode", string(podcast.Transcript), "episode", episode.Title)

	switch podcast.Transcript {
	case config.TranscriptPage:
		br, release, err := r.ensureBrowser(ctx, br)
		if err != nil {
			return "", err
		}
		defer release()
		tab, cancel := br.Page()
		defer cancel()
		return r.fromPage(tab, episode, podcast)
	case config.TranscriptArchive:
		br, release, err := r.ensureBrowser(ctx, br)
		if err != nil {
			return "", err
		}
		defer release()
		tab, cancel := br.Page()
		defer cancel()
		return r.archive.FetchTranscript(tab, episode, podcast)
	case config.TranscriptAudio:
		return r.audio.FetchTranscript(ctx, episode)
	default:
		return "", fmt.Errorf("%w: %q for podcast %s", ErrUnknownMode, podcast.Transcript, podcast.ID)
	}
}

// ensureBrowser returns the active browser with a no-op release, or starts a
// temporary one whose release shuts it down.
func (r *Router) ensureBrowser(ctx context.Context, br *browser.Browser) (*browser.Browser, func(), error) {
	if br != nil {
		return br, func() {}, nil
	}

	r.log.Info("no active browser, starting a temporary one")
	temp, err := r.startBrowser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start temporary browser: %w", err)
	}
	return temp, temp.Close, nil
}

// fromPage scrapes the transcript from the show's public episode page: the
// listing page is searched for a link matching the episode title, and the
// linked page's transcript-like section is extracted. A page without a
// matching link is a not-found, never a guess.
func (r *Router) fromPage(tab context.Context, episode *domain.Episode, podcast *config.Podcast) (string, error) {
	if podcast.ShowPage == "" {
		return "", fmt.Errorf("%w: podcast %s has no show page", scrape.ErrNoEpisodeLink, podcast.ID)
	}

	listing, err := browser.NavigateHTML(tab, podcast.ShowPage, showPageSettle)
	if err != nil {
		return "", err
	}

	link, err := scrape.EpisodeLinkByTitle(listing, podcast.ShowPage, episode.Title)
	if err != nil {
		return "", err
	}
	r.log.Info("found episode page", "url", link.URL)

	page, err := browser.NavigateHTML(tab, link.URL, episodeSettle)
	if err != nil {
		return "", err
	}

	return scrape.TranscriptSection(page)
}

// notFoundErrs are the outcomes that mean "this source has no transcript for
// this episode", as opposed to an operational failure worth reporting.
var notFoundErrs = []error{
	scrape.ErrNoEpisodeLink,
	scrape.ErrNoTranscript,
	archive.ErrNoFiles,
	archive.ErrNoMatchingFile,
	archive.ErrNoGuestName,
	archive.ErrUnsupportedFile,
	archive.ErrEmptyTranscript,
	transcribe.ErrNoAudioURL,
	transcribe.ErrNoSegments,
}

// IsNotFound reports whether the error means the transcript legitimately
// does not exist at the configured source.
func IsNotFound(err error) bool {
	for _, sentinel := range notFoundErrs {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
