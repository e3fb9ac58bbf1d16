// Package watch orchestrates one monitoring run: detect the newest episode
// of each podcast, skip already-processed ones, acquire a transcript,
// summarize, notify, and record the episode as processed. Failures are
// collected per podcast and delivered as one digest at the end of the run,
// so a single broken show never hides the others' results.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podwatch/pkg/browser"
	"podwatch/pkg/config"
	"podwatch/pkg/detect"
	"podwatch/pkg/domain"
	"podwatch/pkg/notify"
	"podwatch/pkg/store"
	"podwatch/pkg/summarize"
	"podwatch/pkg/tracker"
	"podwatch/pkg/transcript"
)

// Watcher runs the monitoring pipeline over the podcast roster.
type Watcher struct {
	settings *config.Settings
	podcasts []config.Podcast

	detector   *detect.Detector
	transcript *transcript.Router
	summarizer *summarize.Summarizer
	notifier   *notify.Notifier
	tracker    *tracker.Tracker
	store      *store.Client
	log        *slog.Logger

	// browser is started on first need and shared for the rest of the run.
	browser *browser.Browser
}

// New wires a watcher from its components.
func New(
	settings *config.Settings,
	podcasts []config.Podcast,
	detector *detect.Detector,
	router *transcript.Router,
	summarizer *summarize.Summarizer,
	notifier *notify.Notifier,
	track *tracker.Tracker,
	episodeStore *store.Client,
	log *slog.Logger,
) *Watcher {
	return &Watcher{
		settings:   settings,
		podcasts:   podcasts,
		detector:   detector,
		transcript: router,
		summarizer: summarizer,
		notifier:   notifier,
		tracker:    track,
		store:      episodeStore,
		log:        log,
	}
}

// Run processes every podcast in the roster. Per-podcast failures are
// collected and sent as one error digest after the last podcast; the run
// itself fails only on infrastructure errors.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.closeBrowser()

	var errs []string
	processed := 0

	for i := range w.podcasts {
		podcast := &w.podcasts[i]
		w.log.Info("checking podcast", "podcast", podcast.ID)

		sent, err := w.processPodcast(ctx, podcast, false)
		if err != nil {
			w.log.Error("podcast check failed", "podcast", podcast.ID, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", podcast.Name, err))
		}
		if sent {
			processed++
		}

		if i < len(w.podcasts)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.settings.RequestDelay):
			}
		}
	}

	w.log.Info("run complete", "podcasts", len(w.podcasts), "new_episodes", processed, "errors", len(errs))

	if err := w.notifier.SendErrors(errs); err != nil {
		return fmt.Errorf("send error digest: %w", err)
	}
	return nil
}

// ProcessForced clears the podcast's dedup state and processes its newest
// episode regardless of whether it was seen before.
func (w *Watcher) ProcessForced(ctx context.Context, podcastID string) error {
	defer w.closeBrowser()

	podcast := config.PodcastByID(w.podcasts, podcastID)
	if podcast == nil {
		return fmt.Errorf("unknown podcast: %s", podcastID)
	}

	if err := w.tracker.Clear(podcastID); err != nil {
		return fmt.Errorf("clear dedup state: %w", err)
	}

	_, err := w.processPodcast(ctx, podcast, true)
	return err
}

// SendTest verifies notification delivery end to end.
func (w *Watcher) SendTest() error {
	return w.notifier.SendTest()
}

// processPodcast runs the pipeline for one podcast. It reports whether a
// notification was sent. The dedup state is updated only after the
// notification succeeds, so a failed episode is retried on the next run.
func (w *Watcher) processPodcast(ctx context.Context, podcast *config.Podcast, forced bool) (bool, error) {
	br, err := w.browserFor(ctx, podcast)
	if err != nil {
		return false, err
	}

	result, err := w.detector.Latest(ctx, br, podcast)
	if err != nil {
		return false, err
	}
	episode := result.Episode

	if !forced && !w.tracker.IsNew(podcast.ID, episode) {
		w.log.Info("no new episode", "podcast", podcast.ID, "latest", episode.Title)
		return false, nil
	}
	if !forced && w.alreadyArchived(ctx, episode) {
		w.log.Info("episode already archived, skipping", "podcast", podcast.ID, "episode", episode.Title)
		return false, nil
	}
	w.log.Info("new episode detected", "podcast", podcast.ID, "episode", episode.Title)

	episode.Transcript = result.Transcript
	if !episode.HasTranscript() {
		text, err := w.transcript.Fetch(ctx, br, episode, podcast)
		switch {
		case err == nil:
			episode.Transcript = text
		case transcript.IsNotFound(err):
			w.log.Warn("no transcript available", "podcast", podcast.ID, "error", err)
		default:
			w.log.Error("transcript acquisition failed", "podcast", podcast.ID, "error", err)
		}
	}

	summary, err := w.summarizer.Summarize(ctx, episode)
	if err != nil {
		return false, fmt.Errorf("summarize %q: %w", episode.Title, err)
	}
	episode.Summary = summary

	if err := w.notifier.SendEpisode(podcast, episode, summary); err != nil {
		return false, fmt.Errorf("notify for %q: %w", episode.Title, err)
	}

	if err := w.tracker.Update(podcast.ID, episode); err != nil {
		return true, fmt.Errorf("record processed episode: %w", err)
	}

	w.archiveEpisode(ctx, episode)
	return true, nil
}

// alreadyArchived consults the optional long-term store as a second dedup
// barrier: the local tracker only remembers the last episode per podcast,
// so the archive catches an older GUID resurfacing as "newest" after a feed
// reorder. Store errors mean "not archived"; the local tracker has already
// had its say.
func (w *Watcher) alreadyArchived(ctx context.Context, episode *domain.Episode) bool {
	if !w.store.Enabled() {
		return false
	}
	guids, err := w.store.ProcessedGUIDs(ctx, episode.PodcastID)
	if err != nil {
		w.log.Warn("could not query archived episodes", "podcast", episode.PodcastID, "error", err)
		return false
	}
	return guids[episode.GUID]
}

// archiveEpisode saves the episode to the optional long-term store. Archive
// failures are logged, never propagated; the notification already went out.
func (w *Watcher) archiveEpisode(ctx context.Context, episode *domain.Episode) {
	if !w.store.Enabled() {
		return
	}
	if err := w.store.SaveEpisode(ctx, episode); err != nil {
		w.log.Warn("could not archive episode", "episode", episode.Title, "error", err)
	}
}

// browserFor returns the shared browser, starting it on first use by a
// podcast whose detection or transcript strategy needs rendered pages.
// RSS-plus-audio podcasts never pay the browser startup cost.
func (w *Watcher) browserFor(ctx context.Context, podcast *config.Podcast) (*browser.Browser, error) {
	if !needsBrowser(podcast) {
		return w.browser, nil
	}
	if w.browser != nil {
		return w.browser, nil
	}

	w.log.Info("starting headless browser")
	br, err := browser.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	w.browser = br
	return br, nil
}

func needsBrowser(podcast *config.Podcast) bool {
	if podcast.Detect == config.DetectPage || podcast.Detect == config.DetectArchive {
		return true
	}
	return podcast.Transcript == config.TranscriptPage || podcast.Transcript == config.TranscriptArchive
}

func (w *Watcher) closeBrowser() {
	if w.browser == nil {
		return
	}
	w.browser.Close()
	w.browser = nil
}
