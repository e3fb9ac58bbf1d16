// Package tracker persists the last processed episode of each podcast in a
// JSON file. It is the dedup barrier between runs: an episode is processed
// once, and reprocessing the same newest episode is a no-op. The file is
// written atomically under an advisory lock so overlapping runs cannot
// interleave partial writes.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"podwatch/pkg/domain"
)

// Tracker records the last seen episode per podcast.
type Tracker struct {
	path string
	lock *flock.Flock
	log  *slog.Logger

	seen map[string]domain.TrackedEpisode
}

// New loads the tracker state from dataDir. A missing or corrupt state file
// starts empty rather than failing the run; dedup state is recoverable, the
// run is not.
func New(dataDir string, log *slog.Logger) (*Tracker, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, "processed_episodes.json")
	t := &Tracker{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  log,
		seen: make(map[string]domain.TrackedEpisode),
	}

	if err := t.load(); err != nil {
		log.Warn("could not load tracker state, starting fresh", "path", path, "error", err)
		t.seen = make(map[string]domain.TrackedEpisode)
	}
	return t, nil
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &t.seen)
}

// IsNew reports whether the episode differs from the last processed one for
// the podcast. A previously unseen podcast is always new. Identity is the
// GUID alone; titles are display data and distinct episodes can share one.
func (t *Tracker) IsNew(podcastID string, episode *domain.Episode) bool {
	last, ok := t.seen[podcastID]
	if !ok {
		return true
	}
	return last.GUID != episode.GUID
}

// Update records the episode as the last processed one for the podcast and
// persists the state immediately.
func (t *Tracker) Update(podcastID string, episode *domain.Episode) error {
	t.seen[podcastID] = domain.TrackedEpisode{
		GUID:        episode.GUID,
		Title:       episode.Title,
		Published:   episode.Published,
		ProcessedAt: time.Now(),
	}
	return t.save()
}

// Clear forgets the podcast's last processed episode, forcing the next run
// to treat its newest episode as new.
func (t *Tracker) Clear(podcastID string) error {
	if _, ok := t.seen[podcastID]; !ok {
		return nil
	}
	delete(t.seen, podcastID)
	return t.save()
}

// All returns a copy of the tracked state, keyed by podcast ID.
func (t *Tracker) All() map[string]domain.TrackedEpisode {
	out := make(map[string]domain.TrackedEpisode, len(t.seen))
	for k, v := range t.seen {
		out[k] = v
	}
	return out
}

// save writes the state atomically: serialize to a temp file in the same
// directory, then rename over the target, all under the advisory lock.
func (t *Tracker) save() error {
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("lock tracker state: %w", err)
	}
	defer t.lock.Unlock()

	data, err := json.MarshalIndent(t.seen, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".processed-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	t.log.Debug("saved tracker state", "podcasts", len(t.seen))
	return nil
}
