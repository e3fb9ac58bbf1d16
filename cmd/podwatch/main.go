// Command podwatch monitors a roster of podcasts for new episodes,
// summarizes them, and announces them on Telegram.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"podwatch/pkg/archive"
	"podwatch/pkg/config"
	"podwatch/pkg/detect"
	"podwatch/pkg/feed"
	"podwatch/pkg/notify"
	"podwatch/pkg/store"
	"podwatch/pkg/summarize"
	"podwatch/pkg/tracker"
	"podwatch/pkg/transcribe"
	"podwatch/pkg/transcript"
	"podwatch/pkg/watch"
)

var podcastsFile string

func main() {
	root := &cobra.Command{
		Use:          "podwatch",
		Short:        "Podcast episode monitor and summarizer",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&podcastsFile, "podcasts", "", "path to a TOML podcast roster (replaces the built-in one)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Check every podcast for a new episode and notify",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, watcher, cleanup, err := setup()
				if err != nil {
					return err
				}
				defer cleanup()
				return watcher.Run(ctx)
			},
		},
		&cobra.Command{
			Use:   "test",
			Short: "Send a test notification to verify credentials",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, watcher, cleanup, err := setup()
				if err != nil {
					return err
				}
				defer cleanup()
				return watcher.SendTest()
			},
		},
		&cobra.Command{
			Use:   "force <podcast-id>",
			Short: "Reprocess a podcast's newest episode even if already seen",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, watcher, cleanup, err := setup()
				if err != nil {
					return err
				}
				defer cleanup()
				return watcher.ProcessForced(ctx, args[0])
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and wires the pipeline. The returned context is
// canceled on SIGINT/SIGTERM; the cleanup function releases the signal
// handler and the episode store connection.
func setup() (context.Context, *watch.Watcher, func(), error) {
	settings, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	podcasts, err := config.LoadPodcasts(podcastsFile)
	if err != nil {
		return nil, nil, nil, err
	}

	log := newLogger(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	episodeStore, err := store.NewClient(ctx, settings.MongoURI, settings.MongoDatabase, settings.MongoCollection)
	if err != nil {
		// The archive is optional; a broken connection degrades, not fails.
		log.Warn("episode archive unavailable", "error", err)
		episodeStore = &store.Client{}
	}

	notifier, err := notify.New(settings.TelegramToken, settings.TelegramChatID, log)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}

	track, err := tracker.New(settings.DataDir, log)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}

	feeds := feed.NewReader(log)
	archiveClient := archive.NewClient(log)
	detector := detect.New(feeds, archiveClient, log)
	audio := transcribe.New(transcribe.NewOpenAISpeech(settings.OpenAIKey), log)
	router := transcript.NewRouter(archiveClient, audio, log)
	summarizer := summarize.New(settings.OpenAIKey, settings.OpenAIModel, log)

	watcher := watch.New(settings, podcasts, detector, router, summarizer, notifier, track, episodeStore, log)

	cleanup := func() {
		if err := episodeStore.Close(context.Background()); err != nil {
			log.Warn("could not close episode store", "error", err)
		}
		stop()
	}
	return ctx, watcher, cleanup, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN", "WARNING":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log
}
