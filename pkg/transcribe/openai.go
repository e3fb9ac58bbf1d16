package transcribe

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISpeech transcribes audio files through the Whisper API.
type OpenAISpeech struct {
	client *openai.Client
}

// NewOpenAISpeech creates a Whisper-backed speech client.
func NewOpenAISpeech(apiKey string) *OpenAISpeech {
	return &OpenAISpeech{client: openai.NewClient(apiKey)}
}

// Transcribe uploads one audio file and returns its plain-text transcript.
func (o *OpenAISpeech) Transcribe(ctx context.Context, filePath string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filePath,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
