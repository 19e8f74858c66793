package client

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/windfall/cicero/internal/catalog"
)

// GeminiClient wraps the Google Vertex AI Gemini client. One client serves
// both the scoring model (structured JSON analysis) and the voice model
// (speech synthesis for narration cues).
type GeminiClient struct {
	client       *genai.Client
	scoringModel string
	voiceModel   string
	voiceName    string
}

// NewGeminiClient creates a new Gemini client using Vertex AI with default
// application credentials.
func NewGeminiClient(ctx context.Context, projectID, location string) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &GeminiClient{
		client:       client,
		scoringModel: "gemini-2.0-flash",
		voiceModel:   "gemini-2.5-flash-preview-tts",
		voiceName:    "Puck",
	}, nil
}

// NewGeminiClientWithServiceAccount creates a new Gemini client using a
// service account file.
func NewGeminiClientWithServiceAccount(ctx context.Context, projectID, location, serviceAccountPath string) (*GeminiClient, error) {
	// Set the environment variable so the SDK can find the credentials
	if err := os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", serviceAccountPath); err != nil {
		return nil, fmt.Errorf("failed to set GOOGLE_APPLICATION_CREDENTIALS: %w", err)
	}

	cfg := &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &GeminiClient{
		client:       client,
		scoringModel: "gemini-2.0-flash",
		voiceModel:   "gemini-2.5-flash-preview-tts",
		voiceName:    "Puck",
	}, nil
}

// WithScoringModel sets the model used for audio analysis.
func (c *GeminiClient) WithScoringModel(model string) *GeminiClient {
	c.scoringModel = model
	return c
}

// WithVoice sets the model and prebuilt voice used for speech synthesis.
func (c *GeminiClient) WithVoice(model, voiceName string) *GeminiClient {
	if model != "" {
		c.voiceModel = model
	}
	if voiceName != "" {
		c.voiceName = voiceName
	}
	return c
}

// Close closes the client.
func (c *GeminiClient) Close() {
	// No explicit close needed for new SDK
}

// analysisSchema constrains the scoring model to the exact result shape the
// pipeline parses. Scores are 0-100; text fields are in the coaching language.
var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":                    {Type: genai.TypeNumber},
		"phoneticClarity":          {Type: genai.TypeNumber},
		"flowRhythm":               {Type: genai.TypeNumber},
		"breathControl":            {Type: genai.TypeNumber},
		"consistency":              {Type: genai.TypeNumber},
		"consonantAttack":          {Type: genai.TypeNumber},
		"consonantReleaseDuration": {Type: genai.TypeNumber},
		"vowelStability":           {Type: genai.TypeNumber},
		"hesitationLevel":          {Type: genai.TypeNumber},
		"breathOnsetVariance":      {Type: genai.TypeNumber},
		"feedback":                 {Type: genai.TypeString},
		"trendAwareSummary":        {Type: genai.TypeString},
		"strengths":                {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"improvements":             {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"recommendation":           {Type: genai.TypeString},
	},
	Required: []string{
		"score", "phoneticClarity", "flowRhythm", "breathControl", "consistency",
		"consonantAttack", "consonantReleaseDuration", "vowelStability",
		"hesitationLevel", "breathOnsetVariance",
		"feedback", "trendAwareSummary", "strengths", "improvements", "recommendation",
	},
}

// AnalyzeAudio sends one encoded recording with its coaching prompt to the
// scoring model and returns the raw JSON response bytes.
func (c *GeminiClient) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, prompt string) ([]byte, error) {
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: audio}},
			},
		},
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.scoringModel, contents, cfg)
	if err != nil {
		return nil, err
	}
	return []byte(resp.Text()), nil
}

// Synthesize renders text as speech with the configured prebuilt voice. The
// returned audio is raw PCM as delivered by the voice model.
func (c *GeminiClient) Synthesize(ctx context.Context, text string, lang catalog.Language) ([]byte, string, error) {
	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		},
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: c.voiceName,
				},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.voiceModel, contents, cfg)
	if err != nil {
		return nil, "", err
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "audio/L16;codec=pcm;rate=24000"
				}
				return part.InlineData.Data, mimeType, nil
			}
		}
	}
	return nil, "", fmt.Errorf("voice model returned no audio")
}
