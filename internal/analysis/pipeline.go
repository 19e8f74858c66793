package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/errors"
)

const masterPrompt = `You are CICERO AI, a world-class phonetic coach with the "Usta" (Master) persona.
MISSION: Teach the method. Embed the process. No improvisation. No emotional fluctuation.

COACHING RULES:
1. VOICE: Calm, clear, neutral authority. Do not motivate; guide technically.
2. METHOD: Always follow Orientation -> Instruction -> Execution -> Reflection.
3. ANALYSIS: Analyze AUDIO ONLY. Do not transcribe. Focus on Timing, Breath onset, Consonant attack, and Vowel stability.
4. FEEDBACK: Explain the cause of the score and set a technical target.
5. PRIORITIES: Articulation is 3x more critical than speed.`

// Analyzer is the external analysis collaborator: one opaque async call that
// scores an audio artifact and returns the raw structured JSON response.
type Analyzer interface {
	AnalyzeAudio(ctx context.Context, audio []byte, mimeType, prompt string) ([]byte, error)
}

// ObjectStore persists the recorded artifact and yields a playable handle.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Pipeline invokes the analysis collaborator with bounded retry and backoff,
// validates the response and enriches it into a Result.
type Pipeline struct {
	analyzer    Analyzer
	store       ObjectStore
	maxAttempts int
	backoffBase time.Duration
	log         zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates an analysis pipeline. store may be nil, in which case
// results carry no audio handle.
func NewPipeline(analyzer Analyzer, store ObjectStore, maxAttempts int, backoffBase time.Duration, log zerolog.Logger) *Pipeline {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pipeline{
		analyzer:    analyzer,
		store:       store,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		log:         log,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Analyze scores one finalized recording against its target text. Rate-limited
// failures are retried with exponential backoff (base, then doubled) up to the
// attempt bound; any other failure propagates immediately. On exhaustion the
// error from the final attempt is returned, not a synthesized wrapper.
func (p *Pipeline) Analyze(ctx context.Context, audio []byte, mimeType string, ex catalog.Exercise, lang catalog.Language, historyDigest string) (*Result, error) {
	if p.analyzer == nil {
		return nil, errors.New(errors.ErrAIService, "no analysis collaborator configured")
	}
	prompt := buildPrompt(ex.Text, lang, historyDigest)

	var lastErr error
	delay := p.backoffBase
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		data, err := p.analyzer.AnalyzeAudio(ctx, audio, mimeType, prompt)
		if err == nil {
			result, perr := parseResponse(data)
			if perr != nil {
				p.log.Error().Err(perr).Str("exercise", ex.ID).Msg("Analysis response failed validation")
				return nil, perr
			}
			return p.enrich(ctx, result, ex, audio, mimeType), nil
		}

		lastErr = err
		if !errors.IsRateLimit(err) {
			// Fail fast: only quota pressure is worth waiting out.
			return nil, errors.Classify(err)
		}
		if attempt == p.maxAttempts {
			break
		}

		p.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", p.maxAttempts).
			Dur("delay", delay).
			Msg("Rate limit hit, backing off before retry")

		if serr := p.sleep(ctx, delay); serr != nil {
			return nil, errors.Classify(serr)
		}
		delay *= 2
	}

	return nil, errors.Classify(lastErr)
}

// enrich assigns the locally-owned fields: identifier, timestamp, exercise
// title, audio handle and model text. The remote is never asked for these.
func (p *Pipeline) enrich(ctx context.Context, r *Result, ex catalog.Exercise, audio []byte, mimeType string) *Result {
	r.ID = uuid.New().String()
	r.Date = time.Now().UTC()
	r.ExerciseTitle = ex.Title
	r.ModelText = ex.Text
	r.AudioMimeType = mimeType

	if p.store != nil {
		key := fmt.Sprintf("recordings/%s%s", r.ID, extensionFor(mimeType))
		url, err := p.store.Upload(ctx, key, audio, mimeType)
		if err != nil {
			// The score is already final; losing the replay handle is not
			// worth failing the whole session over.
			p.log.Error().Err(err).Str("result_id", r.ID).Msg("Failed to store recording")
		} else {
			r.AudioURL = url
		}
	}
	return r
}

func buildPrompt(targetText string, lang catalog.Language, historyDigest string) string {
	return fmt.Sprintf(`%s
Target Language: %s.
Exercise Context: %q.
User History Context: %q.

Analyze the audio for micro-variations:
- Consonant Attack (explosive sounds precision)
- Consonant Release Duration (technical release precision)
- Vowel Stability (resonance consistency)
- Breath Onset Variance (consistency of air intake timing)
- Hesitation patterns.

Weight articulation 3x higher than speed. Detect physical tension patterns.

Output JSON only. Evaluate:
- score, phoneticClarity, flowRhythm, breathControl, consistency,
  consonantAttack, consonantReleaseDuration, vowelStability, hesitationLevel,
  breathOnsetVariance (all 0-100)
- feedback: technical statement in %s about articulation
- trendAwareSummary: authoritative analysis in %s explaining score cause and next correction target
- strengths: 2 items
- improvements: 1 main technical issue
- recommendation: 1 exercise suggestion`,
		masterPrompt, lang, targetText, historyDigest, lang, lang)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".webm"
	}
}
