// Package notify delivers episode summaries and run error digests to a
// Telegram chat. Messages use HTML formatting with all dynamic content
// escaped, and long summaries are split into labeled parts under the API's
// message length cap.
package notify

import (
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"podwatch/pkg/config"
	"podwatch/pkg/domain"
	"podwatch/pkg/textutil"
)

// maxMessageLength is Telegram's hard cap per message.
const maxMessageLength = 4096

// partHeadroom reserves space for the "[Part i/n]" label on split messages.
const partHeadroom = 64

// partDelay paces consecutive parts so they arrive in order and under the
// API rate limit.
const partDelay = 500 * time.Millisecond

// Sender is the Telegram API surface used by the notifier.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends formatted messages to a fixed chat.
type Notifier struct {
	bot    Sender
	chatID string
	log    *slog.Logger
}

// New creates a notifier. The chat ID can be numeric or an @channel name.
func New(token, chatID string, log *slog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

// SendEpisode announces a new episode with its summary. Messages over the
// length cap are split on paragraph boundaries and labeled with their part
// number.
func (n *Notifier) SendEpisode(podcast *config.Podcast, episode *domain.Episode, summary string) error {
	text := formatEpisode(podcast, episode, summary)

	parts := textutil.SplitMessage(text, maxMessageLength-partHeadroom)
	for i, part := range parts {
		if len(parts) > 1 {
			part = fmt.Sprintf("[Part %d/%d]\n%s", i+1, len(parts), part)
		}
		if err := n.send(part); err != nil {
			return fmt.Errorf("send part %d/%d: %w", i+1, len(parts), err)
		}
		if i < len(parts)-1 {
			time.Sleep(partDelay)
		}
	}

	n.log.Info("sent episode notification", "episode", episode.Title, "parts", len(parts))
	return nil
}

// SendErrors sends one digest of the errors collected during a run.
func (n *Notifier) SendErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("⚠️ <b>Podcast Monitor Errors</b>\n\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(e))
	}

	text := b.String()
	if len(text) > maxMessageLength {
		text = textutil.Truncate(text, maxMessageLength-10, "...")
	}
	return n.send(text)
}

// SendTest sends a connectivity check message.
func (n *Notifier) SendTest() error {
	return n.send("✅ Podcast monitor is up. This is a test message.")
}

func (n *Notifier) send(text string) error {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(n.chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(n.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := n.bot.Send(msg)
	return err
}

func formatEpisode(podcast *config.Podcast, episode *domain.Episode, summary string) string {
	var b strings.Builder
	b.WriteString("🎙️ <b>New Episode Alert!</b>\n\n")
	fmt.Fprintf(&b, "<b>Podcast:</b> %s\n", html.EscapeString(podcast.Name))
	fmt.Fprintf(&b, "<b>Episode:</b> %s\n", html.EscapeString(episode.Title))

	if len(episode.Guests) > 0 {
		rendered := make([]string, 0, len(episode.Guests))
		for _, g := range episode.Guests {
			name := html.EscapeString(g.Name)
			if g.ProfileURL != "" {
				name = fmt.Sprintf("<a href=%q>%s</a>", g.ProfileURL, name)
			}
			rendered = append(rendered, name)
		}
		fmt.Fprintf(&b, "<b>Guest(s):</b> %s\n", strings.Join(rendered, ", "))
	}
	fmt.Fprintf(&b, "<b>Published:</b> %s\n", textutil.FormatDate(episode.Published))
	if episode.Duration != "" {
		fmt.Fprintf(&b, "<b>Duration:</b> %s\n", html.EscapeString(formatDuration(episode.Duration)))
	}
	if episode.EpisodeURL != "" {
		fmt.Fprintf(&b, "<b>Link:</b> <a href=%q>Listen here</a>\n", episode.EpisodeURL)
	}

	b.WriteString("\n<b>Summary:</b>\n")
	b.WriteString(html.EscapeString(summary))
	return b.String()
}

// formatDuration renders a feed duration like "1:02:03" as "1h 2m". Feeds
// disagree on the field's shape, so anything unparseable passes through
// verbatim.
func formatDuration(raw string) string {
	d, ok := textutil.ParseDuration(raw)
	if !ok {
		return raw
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
