package analysis

import (
	"encoding/json"
	"time"

	"github.com/windfall/cicero/internal/errors"
)

// Result is one completed analysis, appended to the progress history and never
// mutated afterwards. Identifier, timestamp, exercise title and audio handle
// are assigned locally by the pipeline, never trusted from the remote.
type Result struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	ExerciseTitle string    `json:"exerciseTitle"`

	Score float64 `json:"score"`

	PhoneticClarity          float64 `json:"phoneticClarity"`
	FlowRhythm               float64 `json:"flowRhythm"`
	BreathControl            float64 `json:"breathControl"`
	Consistency              float64 `json:"consistency"`
	ConsonantAttack          float64 `json:"consonantAttack"`
	ConsonantReleaseDuration float64 `json:"consonantReleaseDuration"`
	VowelStability           float64 `json:"vowelStability"`
	// HesitationLevel is stored as reported: 0 is no hesitation, 100 is heavy
	// hesitation. Invert for display or aggregation.
	HesitationLevel          float64 `json:"hesitationLevel"`
	BreathOnsetVariance      float64 `json:"breathOnsetVariance"`

	Feedback          string   `json:"feedback"`
	TrendAwareSummary string   `json:"trendAwareSummary"`
	Strengths         []string `json:"strengths"`
	Improvements      []string `json:"improvements"`
	Recommendation    string   `json:"recommendation"`

	AudioURL      string `json:"audioUrl,omitempty"`
	AudioMimeType string `json:"audioMimeType,omitempty"`
	ModelText     string `json:"modelText,omitempty"`
}

// InvertedHesitation returns the hesitation sub-metric on the same
// higher-is-better scale as the other metrics.
func (r Result) InvertedHesitation() float64 {
	return 100 - r.HesitationLevel
}

// rawResponse mirrors the collaborator response contract. Pointer fields let
// us distinguish a missing field from a zero value.
type rawResponse struct {
	Score                    *float64 `json:"score"`
	PhoneticClarity          *float64 `json:"phoneticClarity"`
	FlowRhythm               *float64 `json:"flowRhythm"`
	BreathControl            *float64 `json:"breathControl"`
	Consistency              *float64 `json:"consistency"`
	ConsonantAttack          *float64 `json:"consonantAttack"`
	ConsonantReleaseDuration *float64 `json:"consonantReleaseDuration"`
	VowelStability           *float64 `json:"vowelStability"`
	HesitationLevel          *float64 `json:"hesitationLevel"`
	BreathOnsetVariance      *float64 `json:"breathOnsetVariance"`
	Feedback                 *string  `json:"feedback"`
	TrendAwareSummary        *string  `json:"trendAwareSummary"`
	Strengths                []string `json:"strengths"`
	Improvements             []string `json:"improvements"`
	Recommendation           *string  `json:"recommendation"`
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// parseResponse validates the collaborator JSON against the response contract.
// A response missing any required field is a malformed-response failure, not
// silently defaulted; numeric sub-metrics are clamped to [0,100] on ingress.
func parseResponse(data []byte) (*Result, error) {
	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedResponse, "analysis response is not valid JSON", err)
	}

	numbers := map[string]*float64{
		"score":                    raw.Score,
		"phoneticClarity":          raw.PhoneticClarity,
		"flowRhythm":               raw.FlowRhythm,
		"breathControl":            raw.BreathControl,
		"consistency":              raw.Consistency,
		"consonantAttack":          raw.ConsonantAttack,
		"consonantReleaseDuration": raw.ConsonantReleaseDuration,
		"vowelStability":           raw.VowelStability,
		"hesitationLevel":          raw.HesitationLevel,
		"breathOnsetVariance":      raw.BreathOnsetVariance,
	}
	for field, v := range numbers {
		if v == nil {
			return nil, errors.MalformedResponse("analysis response missing field: " + field)
		}
	}
	strings := map[string]*string{
		"feedback":          raw.Feedback,
		"trendAwareSummary": raw.TrendAwareSummary,
		"recommendation":    raw.Recommendation,
	}
	for field, v := range strings {
		if v == nil {
			return nil, errors.MalformedResponse("analysis response missing field: " + field)
		}
	}
	if raw.Strengths == nil {
		return nil, errors.MalformedResponse("analysis response missing field: strengths")
	}
	if raw.Improvements == nil {
		return nil, errors.MalformedResponse("analysis response missing field: improvements")
	}

	return &Result{
		Score:                    clamp(*raw.Score),
		PhoneticClarity:          clamp(*raw.PhoneticClarity),
		FlowRhythm:               clamp(*raw.FlowRhythm),
		BreathControl:            clamp(*raw.BreathControl),
		Consistency:              clamp(*raw.Consistency),
		ConsonantAttack:          clamp(*raw.ConsonantAttack),
		ConsonantReleaseDuration: clamp(*raw.ConsonantReleaseDuration),
		VowelStability:           clamp(*raw.VowelStability),
		HesitationLevel:          clamp(*raw.HesitationLevel),
		BreathOnsetVariance:      clamp(*raw.BreathOnsetVariance),
		Feedback:                 *raw.Feedback,
		TrendAwareSummary:        *raw.TrendAwareSummary,
		Strengths:                raw.Strengths,
		Improvements:             raw.Improvements,
		Recommendation:           *raw.Recommendation,
	}, nil
}
