package notify

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"podwatch/pkg/config"
	"podwatch/pkg/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		panic("unexpected chattable type")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func testNotifier(bot Sender) *Notifier {
	return &Notifier{
		bot:    bot,
		chatID: "12345",
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSendEpisode_SingleMessage(t *testing.T) {
	fake := &fakeSender{}
	n := testNotifier(fake)

	podcast := &config.Podcast{Name: "Lenny's Podcast"}
	episode := &domain.Episode{
		Title:      "Founder mode | Brian <Chesky>",
		EpisodeURL: "https://example.com/ep1",
		Duration:   "1:02:03",
		Guests: []domain.Guest{{
			Name:       "Brian Chesky",
			ProfileURL: "https://www.linkedin.com/in/bchesky",
		}},
	}

	if err := n.SendEpisode(podcast, episode, "A short summary."); err != nil {
		t.Fatalf("SendEpisode failed: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(fake.sent))
	}

	msg := fake.sent[0]
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("Expected HTML parse mode, got %q", msg.ParseMode)
	}
	if !msg.DisableWebPagePreview {
		t.Error("Expected web page preview disabled")
	}
	if !strings.Contains(msg.Text, "Lenny&#39;s Podcast") && !strings.Contains(msg.Text, "Lenny's Podcast") {
		t.Errorf("Expected podcast name in message, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Brian &lt;Chesky&gt;") {
		t.Errorf("Expected HTML-escaped title, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Listen here") {
		t.Error("Expected episode link in message")
	}
	if !strings.Contains(msg.Text, `<a href="https://www.linkedin.com/in/bchesky">Brian Chesky</a>`) {
		t.Errorf("Expected guest rendered as profile link, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "<b>Duration:</b> 1h 2m") {
		t.Errorf("Expected duration rendered human-readable, got %q", msg.Text)
	}
	if strings.Contains(msg.Text, "[Part") {
		t.Error("Expected no part label on a single message")
	}
}

func TestSendEpisode_SplitsLongSummary(t *testing.T) {
	fake := &fakeSender{}
	n := testNotifier(fake)

	paragraph := strings.Repeat("A sentence of summary content with several words. ", 20)
	long := strings.TrimSpace(strings.Repeat(paragraph+"\n\n", 12))

	podcast := &config.Podcast{Name: "Show"}
	episode := &domain.Episode{Title: "Long one"}

	if err := n.SendEpisode(podcast, episode, long); err != nil {
		t.Fatalf("SendEpisode failed: %v", err)
	}
	if len(fake.sent) < 2 {
		t.Fatalf("Expected multiple parts, got %d", len(fake.sent))
	}

	for i, msg := range fake.sent {
		if len(msg.Text) > maxMessageLength {
			t.Errorf("Part %d is %d chars, over the cap", i+1, len(msg.Text))
		}
		if !strings.Contains(msg.Text, "[Part") {
			t.Errorf("Part %d missing part label", i+1)
		}
	}
	if !strings.Contains(fake.sent[0].Text, "[Part 1/") {
		t.Errorf("Expected first part labeled 1, got %q", fake.sent[0].Text[:40])
	}
}

func TestSendErrors(t *testing.T) {
	fake := &fakeSender{}
	n := testNotifier(fake)

	if err := n.SendErrors(nil); err != nil {
		t.Fatalf("SendErrors(nil) failed: %v", err)
	}
	if len(fake.sent) != 0 {
		t.Fatal("Expected no message for an empty error list")
	}

	if err := n.SendErrors([]string{"show one: feed <down>", "show two: timeout"}); err != nil {
		t.Fatalf("SendErrors failed: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("Expected one digest message, got %d", len(fake.sent))
	}
	text := fake.sent[0].Text
	if !strings.Contains(text, "show one") || !strings.Contains(text, "show two") {
		t.Errorf("Expected both errors in digest, got %q", text)
	}
	if !strings.Contains(text, "feed &lt;down&gt;") {
		t.Errorf("Expected error text escaped, got %q", text)
	}
}

func TestSendTest(t *testing.T) {
	fake := &fakeSender{}
	n := testNotifier(fake)
	if err := n.SendTest(); err != nil {
		t.Fatalf("SendTest failed: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("Expected one test message, got %d", len(fake.sent))
	}
}

func TestSend_NumericAndChannelChatIDs(t *testing.T) {
	fake := &fakeSender{}
	n := testNotifier(fake)
	if err := n.send("hi"); err != nil {
		t.Fatal(err)
	}
	if fake.sent[0].ChatID != 12345 {
		t.Errorf("Expected numeric chat ID, got %d", fake.sent[0].ChatID)
	}

	n.chatID = "@mychannel"
	if err := n.send("hi"); err != nil {
		t.Fatal(err)
	}
	if fake.sent[1].ChannelUsername != "@mychannel" {
		t.Errorf("Expected channel username, got %q", fake.sent[1].ChannelUsername)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1:02:03", "1h 2m"},
		{"45:30", "45m"},
		{"2:00:00", "2h 0m"},
		{"90", "1m"},
		{"about an hour", "about an hour"},
	}
	for _, c := range cases {
		if got := formatDuration(c.in); got != c.want {
			t.Errorf("formatDuration(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatEpisode_UnknownDate(t *testing.T) {
	text := formatEpisode(&config.Podcast{Name: "Show"}, &domain.Episode{Title: "Ep"}, "sum")
	if !strings.Contains(text, "Unknown date") {
		t.Errorf("Expected unknown-date placeholder, got %q", text)
	}
}
