package domain

import (
	"strings"
	"time"
)

// Guest is a person appearing on an episode. Guests are derived from episode
// metadata (titles, descriptions, archive filenames) and are never persisted
// on their own.
type Guest struct {
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// ProfileURL is a link to the guest's public profile (usually LinkedIn),
	// when one could be extracted from the episode description.
	ProfileURL string `bson:"profile_url,omitempty" json:"profile_url,omitempty"`
}

// Episode is a single podcast release. Identity is (PodcastID, GUID); the GUID
// is the feed entry id (or link) for RSS-detected episodes and a synthesized
// "dropbox-<filename>" token for archive-detected ones. The GUID must be
// stable across repeated fetches of the same item - deduplication depends
// on it.
type Episode struct {
	GUID      string `bson:"guid" json:"guid"`
	PodcastID string `bson:"podcast_id" json:"podcast_id"`

	Title string `bson:"title" json:"title"`

	// Description is the episode show notes. May contain HTML; callers that
	// need plain text should clean it first.
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	Published *time.Time `bson:"published,omitempty" json:"published,omitempty"`

	// EpisodeURL links to the episode page, AudioURL to the raw media file.
	EpisodeURL string `bson:"episode_url,omitempty" json:"episode_url,omitempty"`
	AudioURL   string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	Guests []Guest `bson:"guests,omitempty" json:"guests,omitempty"`

	Transcript string `bson:"transcript,omitempty" json:"transcript,omitempty"`
	Summary    string `bson:"summary,omitempty" json:"summary,omitempty"`

	// Duration is the raw duration string from the feed ("HH:MM:SS" or
	// "MM:SS"), when present.
	Duration string `bson:"duration,omitempty" json:"duration,omitempty"`
}

// HasTranscript reports whether the episode carries a usable transcript.
// Very short blocks are treated as absent; they are almost always scraping
// artifacts rather than real transcripts.
func (e *Episode) HasTranscript() bool {
	return len(strings.TrimSpace(e.Transcript)) > 100
}

// GuestNames returns the names of all guests in order.
func (e *Episode) GuestNames() []string {
	names := make([]string, 0, len(e.Guests))
	for _, g := range e.Guests {
		names = append(names, g.Name)
	}
	return names
}

// TrackedEpisode is the minimal per-podcast state persisted between runs.
type TrackedEpisode struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Published   *time.Time `json:"published_date"`
	ProcessedAt time.Time  `json:"processed_at"`
}

// ArchiveEpisodeResult is produced by archive-based detection, where episode
// identity and transcript are discovered together in a single pass over the
// shared folder (unlike the RSS path, which discovers them in two steps).
type ArchiveEpisodeResult struct {
	Episode    Episode
	Transcript string
	Filename   string
}
