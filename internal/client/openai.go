package client

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/windfall/cicero/internal/catalog"
)

// OpenAIClient wraps the OpenAI API client. It serves as the fallback speech
// provider when no Vertex AI voice model is configured.
type OpenAIClient struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		voice:  openai.VoiceOnyx,
	}
}

// WithVoice sets the synthesis voice.
func (c *OpenAIClient) WithVoice(voice openai.SpeechVoice) *OpenAIClient {
	c.voice = voice
	return c
}

// Synthesize renders text as MP3 speech.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string, lang catalog.Language) ([]byte, string, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", err
	}
	return audio, "audio/mpeg", nil
}
