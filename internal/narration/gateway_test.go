package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/errors"
)

type fakeSpeech struct {
	err   error
	audio []byte
}

func (s *fakeSpeech) Synthesize(ctx context.Context, text string, lang catalog.Language) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.audio, "audio/mpeg", nil
}

type fakeObjectStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *fakeObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return "https://cdn.example/" + key, nil
}

type fakeQueue struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	expiry map[string]time.Duration
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{lists: make(map[string][][]byte), expiry: make(map[string]time.Duration)}
}

func (q *fakeQueue) RPush(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lists[key] = append(q.lists[key], data)
	return nil
}

func (q *fakeQueue) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expiry[key] = ttl
	return nil
}

func (q *fakeQueue) BLPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.lists[key]
	if len(list) == 0 {
		return nil, fmt.Errorf("nil reply")
	}
	q.lists[key] = list[1:]
	return list[0], nil
}

func TestDeliver(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("mp3")}
	store := &fakeObjectStore{}
	queue := newFakeQueue()
	g := NewGateway(speech, store, queue, zerolog.Nop())

	g.deliver(context.Background(), "ada", "Başla.", catalog.LanguageTurkish)

	key := cueKeyPrefix + "ada"
	data, err := queue.BLPop(context.Background(), time.Second, key)
	if err != nil {
		t.Fatalf("expected a queued cue: %v", err)
	}
	var cue SpokenCue
	if err := json.Unmarshal(data, &cue); err != nil {
		t.Fatal(err)
	}
	if cue.Text != "Başla." {
		t.Errorf("cue text = %q", cue.Text)
	}
	if !strings.HasPrefix(cue.AudioURL, "https://cdn.example/narration/") {
		t.Errorf("cue audio url = %q", cue.AudioURL)
	}
	if !strings.HasSuffix(store.keys[0], ".mp3") {
		t.Errorf("upload key should carry the mp3 extension, got %q", store.keys[0])
	}
	if queue.expiry[key] != cueTTL {
		t.Errorf("cue expiry = %v, want %v", queue.expiry[key], cueTTL)
	}
}

func TestDeliverQuotaFailureRaisesFlag(t *testing.T) {
	speech := &fakeSpeech{err: fmt.Errorf("429 quota exceeded")}
	queue := newFakeQueue()
	g := NewGateway(speech, nil, queue, zerolog.Nop())

	if g.QuotaExceeded() {
		t.Fatal("quota flag should start clear")
	}
	g.deliver(context.Background(), "ada", "text", catalog.LanguageTurkish)

	if !g.QuotaExceeded() {
		t.Error("rate-limited synthesis should raise the quota flag")
	}
	if len(queue.lists) != 0 {
		t.Error("no cue should be queued after a synthesis failure")
	}

	g.ClearQuota()
	if g.QuotaExceeded() {
		t.Error("flag should clear on manual retry")
	}
}

func TestDeliverOtherFailureIsSilent(t *testing.T) {
	speech := &fakeSpeech{err: fmt.Errorf("connection refused")}
	g := NewGateway(speech, nil, newFakeQueue(), zerolog.Nop())

	g.deliver(context.Background(), "ada", "text", catalog.LanguageTurkish)
	if g.QuotaExceeded() {
		t.Error("non-quota failures must not raise the quota flag")
	}
}

func TestDeliverTextOnlyWithoutSpeech(t *testing.T) {
	queue := newFakeQueue()
	g := NewGateway(nil, nil, queue, zerolog.Nop())

	g.deliver(context.Background(), "ada", "Egzersiz iptal edildi.", catalog.LanguageTurkish)

	data, err := queue.BLPop(context.Background(), time.Second, cueKeyPrefix+"ada")
	if err != nil {
		t.Fatalf("expected a text-only cue: %v", err)
	}
	var cue SpokenCue
	if err := json.Unmarshal(data, &cue); err != nil {
		t.Fatal(err)
	}
	if cue.AudioURL != "" {
		t.Error("text-only cue should carry no audio url")
	}
}

func TestAnnounceIsAsynchronous(t *testing.T) {
	queue := newFakeQueue()
	g := NewGateway(nil, nil, queue, zerolog.Nop())

	start := time.Now()
	g.Announce("ada", "hello", catalog.LanguageEnglish, 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Announce blocked for %v", elapsed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := queue.BLPop(context.Background(), 0, cueKeyPrefix+"ada"); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("cue never arrived")
}

func TestAnnounceEmptyTextIsDropped(t *testing.T) {
	queue := newFakeQueue()
	g := NewGateway(nil, nil, queue, zerolog.Nop())
	g.Announce("ada", "", catalog.LanguageTurkish, 0)
	time.Sleep(50 * time.Millisecond)
	if len(queue.lists) != 0 {
		t.Error("empty text should never produce a cue")
	}
}

func TestNextCueWithoutQueue(t *testing.T) {
	g := NewGateway(nil, nil, nil, zerolog.Nop())
	_, err := g.NextCue(context.Background(), "ada")
	if errors.Classify(err).Code != errors.ErrTimeout {
		t.Errorf("expected timeout classification, got %v", err)
	}
}

func TestCueText(t *testing.T) {
	t.Run("resolves the requested language", func(t *testing.T) {
		got := CueText(CueCancelled, catalog.LanguageEnglish)
		if got != "Exercise cancelled." {
			t.Errorf("cue = %q", got)
		}
	})

	t.Run("falls back to Turkish", func(t *testing.T) {
		got := CueText(CueCancelled, catalog.Language("Klingon"))
		if got != "Egzersiz iptal edildi." {
			t.Errorf("cue = %q", got)
		}
	})

	t.Run("unknown cue is empty", func(t *testing.T) {
		if got := CueText(Cue("nope"), catalog.LanguageTurkish); got != "" {
			t.Errorf("cue = %q, want empty", got)
		}
	})
}

func TestInstructionFor(t *testing.T) {
	ear, _ := catalog.ByID("tr_ear_1")
	if !strings.Contains(InstructionFor(ear), "listen") {
		t.Error("ear training instruction should ask to listen first")
	}

	artic, _ := catalog.ByID("tr_artic_1")
	if !strings.Contains(InstructionFor(artic), artic.Text) {
		t.Error("instruction should carry the target text")
	}
}
