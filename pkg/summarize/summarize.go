// Package summarize produces episode summaries through a chat-completion
// model. Transcripts are truncated on a word boundary to fit the context
// window; when no transcript exists, the show notes description is
// summarized instead, clearly marked as such.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"podwatch/pkg/domain"
	"podwatch/pkg/textutil"
)

var ErrNothingToSummarize = errors.New("episode has no transcript or description")

// maxTranscriptChars bounds the prompt size. Long episodes run to several
// hundred thousand characters; the tail is cut on a word boundary.
const maxTranscriptChars = 150000

// ChatClient is the chat-completion surface used by the summarizer.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Summarizer turns transcripts into structured episode summaries.
type Summarizer struct {
	client ChatClient
	model  string
	log    *slog.Logger
}

// New creates a summarizer backed by the OpenAI API.
func New(apiKey, model string, log *slog.Logger) *Summarizer {
	return &Summarizer{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    log,
	}
}

// Summarize produces a structured summary of the episode. A transcript is
// preferred; without one, the show notes description is summarized and the
// result says so. Neither present is a hard error.
func (s *Summarizer) Summarize(ctx context.Context, episode *domain.Episode) (string, error) {
	if episode.HasTranscript() {
		return s.fromTranscript(ctx, episode)
	}

	description := strings.TrimSpace(textutil.CleanHTML(episode.Description))
	if description == "" {
		return "", fmt.Errorf("%w: %s", ErrNothingToSummarize, episode.Title)
	}

	s.log.Info("no transcript, summarizing description", "episode", episode.Title)
	summary, err := s.complete(ctx, descriptionPrompt(episode, description))
	if err != nil {
		return "", err
	}
	return "Note: summary based on episode description only, no transcript was available.\n\n" + summary, nil
}

func (s *Summarizer) fromTranscript(ctx context.Context, episode *domain.Episode) (string, error) {
	transcript := episode.Transcript
	if len(transcript) > maxTranscriptChars {
		s.log.Info("truncating transcript for summarization",
			"chars", len(transcript), "limit", maxTranscriptChars)
		transcript = textutil.Truncate(transcript, maxTranscriptChars, "")
	}
	return s.complete(ctx, transcriptPrompt(episode, transcript))
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.3,
		MaxTokens:   6000,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("chat completion returned an empty summary")
	}

	s.log.Info("generated summary",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return summary, nil
}

const systemPrompt = `You are an expert podcast analyst. You write detailed,
practical summaries for busy professionals who want the full value of an
episode without listening to it. Use plain text only, no markdown syntax.`

func transcriptPrompt(episode *domain.Episode, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize this podcast episode.\n\n")
	fmt.Fprintf(&b, "Episode: %s\n", episode.Title)
	if guests := episode.GuestNames(); len(guests) > 0 {
		fmt.Fprintf(&b, "Guest(s): %s\n", strings.Join(guests, ", "))
	}
	b.WriteString(`
Structure the summary as follows:

OVERVIEW
Two or three sentences on what the episode is about and why it matters.

KEY TOPICS
The main topics discussed, each with one or two sentences of substance.

ACTIONABLE INSIGHTS
Concrete, practical takeaways a listener could apply. Be specific.

NOTABLE QUOTES
Two or three memorable quotes, attributed to the speaker where clear.

Transcript:
`)
	b.WriteString(transcript)
	return b.String()
}

func descriptionPrompt(episode *domain.Episode, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize what this podcast episode covers based on its show notes.\n\n")
	fmt.Fprintf(&b, "Episode: %s\n", episode.Title)
	if guests := episode.GuestNames(); len(guests) > 0 {
		fmt.Fprintf(&b, "Guest(s): %s\n", strings.Join(guests, ", "))
	}
	b.WriteString("\nGive a short overview and the likely key topics. Do not invent details the notes do not support.\n\nShow notes:\n")
	b.WriteString(description)
	return b.String()
}
