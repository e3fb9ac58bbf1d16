// Package config holds process-wide settings and the podcast roster. Both are
// built once at startup and passed down by parameter; nothing here is mutated
// after construction.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DetectMode selects how the newest episode of a podcast is discovered.
type DetectMode string

const (
	DetectRSS     DetectMode = "rss"
	DetectPage    DetectMode = "page"
	DetectArchive DetectMode = "archive"
)

// TranscriptMode selects which transcript-acquisition strategy serves a
// podcast. The set is closed: strategies are known at configuration time.
type TranscriptMode string

const (
	TranscriptPage    TranscriptMode = "page"
	TranscriptArchive TranscriptMode = "archive"
	TranscriptAudio   TranscriptMode = "audio"
)

// Podcast is the immutable configuration of one monitored show.
type Podcast struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	RSSURL   string `toml:"rss_url"`
	ShowPage string `toml:"show_page_url,omitempty"`
	Website  string `toml:"website,omitempty"`
	Category string `toml:"category,omitempty"`

	Detect     DetectMode     `toml:"detect_mode"`
	Transcript TranscriptMode `toml:"transcript_mode"`

	// ArchiveURL is the shared-folder URL used by archive detection and
	// archive transcript fetching. Required when either mode is "archive".
	ArchiveURL string `toml:"archive_url,omitempty"`
}

// Settings is the application configuration loaded from the environment.
type Settings struct {
	OpenAIKey   string
	OpenAIModel string

	TelegramToken  string
	TelegramChatID string

	DataDir  string
	LogLevel string

	// RequestDelay is the pause between podcasts during a run, to be
	// polite to the upstream services.
	RequestDelay time.Duration

	// MongoURI enables the best-effort episode archive when non-empty.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

var errMissingCredentials = errors.New("missing credentials")

// Load reads settings from the environment. Missing credentials are a fatal
// configuration error: the run cannot do anything useful without them.
func Load() (*Settings, error) {
	s := &Settings{
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:  os.Getenv("TELEGRAM_CHAT_ID"),
		DataDir:         envOr("DATA_DIR", "data"),
		LogLevel:        envOr("LOG_LEVEL", "INFO"),
		RequestDelay:    time.Second,
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   envOr("MONGO_DB", "podwatch"),
		MongoCollection: envOr("MONGO_COLLECTION", "episodes"),
	}

	if v := os.Getenv("REQUEST_DELAY_SECONDS"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse REQUEST_DELAY_SECONDS: %w", err)
		}
		s.RequestDelay = time.Duration(secs * float64(time.Second))
	}

	if s.OpenAIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", errMissingCredentials)
	}
	if s.TelegramToken == "" {
		return nil, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is not set", errMissingCredentials)
	}
	if s.TelegramChatID == "" {
		return nil, fmt.Errorf("%w: TELEGRAM_CHAT_ID is not set", errMissingCredentials)
	}

	return s, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// defaultPodcasts is the compiled-in roster. A TOML file can replace it
// entirely via LoadPodcasts.
var defaultPodcasts = []Podcast{
	{
		ID:         "lennys-podcast",
		Name:       "Lenny's Podcast",
		RSSURL:     "https://api.substack.com/feed/podcast/10845.rss",
		ShowPage:   "https://podcasts.apple.com/us/podcast/lennys-podcast-product-growth-career/id1627920305",
		Website:    "https://www.lennysnewsletter.com/podcast",
		Category:   "Product Management",
		Detect:     DetectArchive,
		Transcript: TranscriptArchive,
		ArchiveURL: "https://www.dropbox.com/scl/fo/yxi4s2w998p1gvtpu4193/AMdNPR8AOw0lMklwtnC0TrQ?rlkey=j06x0nipoti519e0xgm23zsn9&e=1&st=ahz0fj11&dl=0",
	},
	{
		ID:         "sub-club",
		Name:       "Sub Club by RevenueCat",
		RSSURL:     "https://feeds.transistor.fm/sub-club",
		ShowPage:   "https://podcasts.apple.com/us/podcast/sub-club-by-revenuecat/id1538057974",
		Website:    "https://subclub.com/",
		Category:   "Mobile App Monetization",
		Detect:     DetectRSS,
		Transcript: TranscriptPage,
	},
	{
		ID:         "20vc",
		Name:       "The Twenty Minute VC",
		RSSURL:     "https://thetwentyminutevc.libsyn.com/rss",
		ShowPage:   "https://podcasts.apple.com/us/podcast/the-twenty-minute-vc-vc-venture-capital-startup-funding/id958230465",
		Website:    "https://www.thetwentyminutevc.com",
		Category:   "Venture Capital",
		Detect:     DetectRSS,
		Transcript: TranscriptAudio,
	},
}

type podcastFile struct {
	Podcasts []Podcast `toml:"podcasts"`
}

// LoadPodcasts returns the podcast roster. When path is empty or the file
// does not exist, the compiled-in defaults are used; an existing file
// replaces the defaults entirely.
func LoadPodcasts(path string) ([]Podcast, error) {
	if path == "" {
		return clonePodcasts(defaultPodcasts), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return clonePodcasts(defaultPodcasts), nil
		}
		return nil, fmt.Errorf("read podcast config: %w", err)
	}

	var file podcastFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse podcast config: %w", err)
	}
	if len(file.Podcasts) == 0 {
		return nil, errors.New("podcast config contains no podcasts")
	}

	for i := range file.Podcasts {
		p := &file.Podcasts[i]
		if p.ID == "" || p.RSSURL == "" {
			return nil, fmt.Errorf("podcast %d: id and rss_url are required", i)
		}
		if p.Detect == "" {
			p.Detect = DetectRSS
		}
		if p.Transcript == "" {
			p.Transcript = TranscriptPage
		}
	}

	return file.Podcasts, nil
}

// PodcastByID finds a podcast in the roster, or nil.
func PodcastByID(podcasts []Podcast, id string) *Podcast {
	for i := range podcasts {
		if podcasts[i].ID == id {
			return &podcasts[i]
		}
	}
	return nil
}

func clonePodcasts(src []Podcast) []Podcast {
	out := make([]Podcast, len(src))
	copy(out, src)
	return out
}
