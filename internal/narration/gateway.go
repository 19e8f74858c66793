// Package narration is the best-effort spoken-cue side channel. Cues are
// synthesized and delivered fire-and-forget; a narration failure never blocks
// or rolls back a session transition, it can only raise the soft quota flag.
package narration

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/errors"
)

const (
	// cueKeyPrefix namespaces per-profile cue delivery lists.
	cueKeyPrefix = "narration:cue:"
	// cueTTL bounds how long an unclaimed cue stays queued.
	cueTTL = 60 * time.Second
	// defaultCueTimeout bounds the consumer-side BLPOP wait.
	defaultCueTimeout = 10 * time.Second
)

// Speech is the external speech-synthesis collaborator.
type Speech interface {
	Synthesize(ctx context.Context, text string, lang catalog.Language) (audio []byte, mimeType string, err error)
}

// ObjectStore persists synthesized audio and yields a playable handle.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Queue delivers spoken cues to the client (producer RPUSH, consumer BLPOP).
type Queue interface {
	RPush(ctx context.Context, key string, value interface{}) error
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
	BLPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error)
}

// SpokenCue is one delivered narration item.
type SpokenCue struct {
	Text     string `json:"text"`
	AudioURL string `json:"audio_url,omitempty"`
}

// Gateway requests spoken prompts from the speech collaborator at transition
// points. All delivery is asynchronous and loss-tolerant.
type Gateway struct {
	speech Speech
	store  ObjectStore
	queue  Queue
	log    zerolog.Logger

	quotaExceeded atomic.Bool
}

// NewGateway creates a narration gateway. store and queue may be nil; cues
// then degrade to text-only or are dropped after synthesis.
func NewGateway(speech Speech, store ObjectStore, queue Queue, log zerolog.Logger) *Gateway {
	return &Gateway{
		speech: speech,
		store:  store,
		queue:  queue,
		log:    log,
	}
}

// Announce schedules a fire-and-forget spoken cue after delay. It returns
// immediately; the caller is never blocked on synthesis or delivery.
func (g *Gateway) Announce(profile, text string, lang catalog.Language, delay time.Duration) {
	if text == "" {
		return
	}
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		// Detached context: the cue outlives the request that triggered it.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		g.deliver(ctx, profile, text, lang)
	}()
}

// AnnounceCue resolves a stock cue and schedules it.
func (g *Gateway) AnnounceCue(profile string, cue Cue, lang catalog.Language, delay time.Duration) {
	g.Announce(profile, CueText(cue, lang), lang, delay)
}

func (g *Gateway) deliver(ctx context.Context, profile, text string, lang catalog.Language) {
	cue := SpokenCue{Text: text}

	if g.speech != nil {
		audio, mimeType, err := g.speech.Synthesize(ctx, text, lang)
		if err != nil {
			classified := errors.Classify(err)
			if classified.Code == errors.ErrRateLimit {
				g.quotaExceeded.Store(true)
				g.log.Warn().Err(err).Str("profile", profile).Msg("Narration hit quota, raising soft error flag")
			} else {
				g.log.Error().Err(err).Str("profile", profile).Msg("Narration synthesis failed")
			}
			return
		}
		if g.store != nil && len(audio) > 0 {
			key := fmt.Sprintf("narration/%s%s", uuid.New().String(), extFor(mimeType))
			url, err := g.store.Upload(ctx, key, audio, mimeType)
			if err != nil {
				g.log.Error().Err(err).Str("profile", profile).Msg("Failed to store narration audio")
			} else {
				cue.AudioURL = url
			}
		}
	}

	if g.queue == nil {
		return
	}
	key := cueKeyPrefix + profile
	if err := g.queue.RPush(ctx, key, cue); err != nil {
		g.log.Error().Err(err).Str("profile", profile).Msg("Failed to queue narration cue")
		return
	}
	if err := g.queue.SetExpiry(ctx, key, cueTTL); err != nil {
		g.log.Error().Err(err).Str("profile", profile).Msg("Failed to set cue expiry")
	}
}

// NextCue blocks until a cue is available for the profile or the wait times
// out. The raw bytes are the JSON-encoded SpokenCue.
func (g *Gateway) NextCue(ctx context.Context, profile string) ([]byte, error) {
	if g.queue == nil {
		return nil, errors.New(errors.ErrTimeout, "no narration cue available")
	}
	data, err := g.queue.BLPop(ctx, defaultCueTimeout, cueKeyPrefix+profile)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTimeout, "no narration cue available", err)
	}
	return data, nil
}

// QuotaExceeded reports the process-wide soft quota flag raised by a
// rate-limited narration attempt.
func (g *Gateway) QuotaExceeded() bool {
	return g.quotaExceeded.Load()
}

// ClearQuota resets the soft quota flag (manual retry).
func (g *Gateway) ClearQuota() {
	g.quotaExceeded.Store(false)
}

func extFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".pcm"
	}
}
