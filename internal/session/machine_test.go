package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/analysis"
	"github.com/windfall/cicero/internal/capture"
	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/errors"
	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/internal/progress"
)

type fakePipeline struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
	err   error
	score float64
}

func (p *fakePipeline) Analyze(ctx context.Context, audio []byte, mimeType string, ex catalog.Exercise, lang catalog.Language, historyDigest string) (*analysis.Result, error) {
	p.mu.Lock()
	p.calls++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	if p.err != nil {
		return nil, p.err
	}
	return &analysis.Result{
		ID:            "res-1",
		Date:          time.Now().UTC(),
		ExerciseTitle: ex.Title,
		Score:         p.score,
	}, nil
}

func (p *fakePipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeNarrator struct {
	mu   sync.Mutex
	cues []narration.Cue
}

func (n *fakeNarrator) Announce(profile, text string, lang catalog.Language, delay time.Duration) {}

func (n *fakeNarrator) AnnounceCue(profile string, cue narration.Cue, lang catalog.Language, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cues = append(n.cues, cue)
}

func (n *fakeNarrator) sawCue(cue narration.Cue) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.cues {
		if c == cue {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *fakePublisher) PublishAsync(ctx context.Context, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, data)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type failingDevice struct{}

func (failingDevice) Open(ctx context.Context) (string, error) {
	return "", fmt.Errorf("permission denied")
}
func (failingDevice) Close() error { return nil }

type fixture struct {
	machine   *Machine
	store     *progress.Store
	pipeline  *fakePipeline
	narrator  *fakeNarrator
	publisher *fakePublisher
}

func newFixture(t *testing.T, pipeline *fakePipeline) *fixture {
	t.Helper()
	store := progress.NewStore(progress.NewMemoryKV(), zerolog.Nop())
	if _, err := store.Create(context.Background(), "ada", catalog.LanguageTurkish); err != nil {
		t.Fatal(err)
	}
	narrator := &fakeNarrator{}
	publisher := &fakePublisher{}
	controller := capture.NewController(&capture.ChunkDevice{}, zerolog.Nop())
	machine := NewMachine(controller, pipeline, store, narrator, publisher, zerolog.Nop())
	return &fixture{machine: machine, store: store, pipeline: pipeline, narrator: narrator, publisher: publisher}
}

func (f *fixture) selectExercise(t *testing.T) {
	t.Helper()
	ex, _ := catalog.ByID("tr_artic_1")
	if err := f.machine.Select(context.Background(), "ada", ex, catalog.LanguageTurkish); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) record(t *testing.T, chunks ...[]byte) {
	t.Helper()
	if err := f.machine.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if err := f.machine.PushChunk(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.machine.StopRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func waitState(t *testing.T, m *Machine, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		if snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s, stuck at %s", want, m.Snapshot().State)
	return Snapshot{}
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t, &fakePipeline{score: 80})

	f.selectExercise(t)
	if got := f.machine.Snapshot().State; got != StateListening {
		t.Fatalf("state = %s, want listening", got)
	}

	f.record(t, []byte("chunk1"), []byte("chunk2"))
	snap := waitState(t, f.machine, StateFinished)

	if snap.LastResult == nil || snap.LastResult.Score != 80 {
		t.Errorf("last result missing or wrong: %+v", snap.LastResult)
	}

	rec, _, err := f.store.Load(context.Background(), "ada")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ExercisesCompleted != 1 || rec.Score != 80 || len(rec.History) != 1 {
		t.Errorf("record not updated: %+v", rec)
	}

	if !f.narrator.sawCue(narration.CueRecording) || !f.narrator.sawCue(narration.CueAnalyzing) || !f.narrator.sawCue(narration.CueFinished) {
		t.Errorf("missing transition cues, saw %v", f.narrator.cues)
	}
	if f.publisher.count() != 1 {
		t.Errorf("expected one completion event, got %d", f.publisher.count())
	}
}

func TestEmptyArtifactSkipsAnalysis(t *testing.T) {
	pipeline := &fakePipeline{score: 80}
	f := newFixture(t, pipeline)

	f.selectExercise(t)
	f.record(t)

	snap := f.machine.Snapshot()
	if snap.State != StateErrored {
		t.Fatalf("state = %s, want errored", snap.State)
	}
	if snap.Classification != errors.ErrEmptyArtifact {
		t.Errorf("classification = %s, want %s", snap.Classification, errors.ErrEmptyArtifact)
	}
	if pipeline.callCount() != 0 {
		t.Error("an empty artifact must never reach the pipeline")
	}
	if f.narrator.sawCue(narration.CueAnalyzing) {
		t.Error("no analysis starts, so the analyzing cue must not be spoken")
	}

	rec, _, _ := f.store.Load(context.Background(), "ada")
	if rec.ExercisesCompleted != 0 {
		t.Error("record must be untouched")
	}
}

func TestSingleSessionInvariant(t *testing.T) {
	f := newFixture(t, &fakePipeline{score: 80})
	f.selectExercise(t)

	ex, _ := catalog.ByID("tr_ear_1")
	err := f.machine.Select(context.Background(), "ada", ex, catalog.LanguageTurkish)
	if errors.Classify(err).Code != errors.ErrConflict {
		t.Errorf("select during an active session should conflict, got %v", err)
	}
}

func TestDeviceFailureKeepsListening(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV(), zerolog.Nop())
	if _, err := store.Create(context.Background(), "ada", catalog.LanguageTurkish); err != nil {
		t.Fatal(err)
	}
	controller := capture.NewController(failingDevice{}, zerolog.Nop())
	m := NewMachine(controller, &fakePipeline{}, store, &fakeNarrator{}, nil, zerolog.Nop())

	ex, _ := catalog.ByID("tr_artic_1")
	if err := m.Select(context.Background(), "ada", ex, catalog.LanguageTurkish); err != nil {
		t.Fatal(err)
	}

	err := m.StartRecording(context.Background())
	if errors.Classify(err).Code != errors.ErrDevice {
		t.Errorf("expected device classification, got %v", err)
	}
	if got := m.Snapshot().State; got != StateListening {
		t.Errorf("state = %s, the transition must be aborted in place", got)
	}
}

func TestConfirmAbortDiscardsLateResult(t *testing.T) {
	pipeline := &fakePipeline{score: 80, block: make(chan struct{})}
	f := newFixture(t, pipeline)

	f.selectExercise(t)
	f.record(t, []byte("chunk"))
	if got := f.machine.Snapshot().State; got != StateAnalyzing {
		t.Fatalf("state = %s, want analyzing", got)
	}

	if got := f.machine.RequestAbort(); got != StatePendingAbort {
		t.Fatalf("state = %s, want pending abort", got)
	}
	if err := f.machine.ConfirmAbort(); err != nil {
		t.Fatal(err)
	}
	if got := f.machine.Snapshot().State; got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if !f.narrator.sawCue(narration.CueCancelled) {
		t.Error("abort should speak the cancellation cue")
	}

	// Let the in-flight analysis complete after the abort.
	close(pipeline.block)
	time.Sleep(100 * time.Millisecond)

	if got := f.machine.Snapshot().State; got != StateIdle {
		t.Errorf("late result must not move the machine, state = %s", got)
	}
	rec, _, _ := f.store.Load(context.Background(), "ada")
	if rec.ExercisesCompleted != 0 || len(rec.History) != 0 {
		t.Error("late result must never touch the record")
	}
	if f.publisher.count() != 0 {
		t.Error("no completion event after abort")
	}
}

func TestDismissAbortResumes(t *testing.T) {
	pipeline := &fakePipeline{score: 80, block: make(chan struct{})}
	f := newFixture(t, pipeline)

	f.selectExercise(t)
	f.record(t, []byte("chunk"))
	f.machine.RequestAbort()
	if err := f.machine.DismissAbort(); err != nil {
		t.Fatal(err)
	}
	if got := f.machine.Snapshot().State; got != StateAnalyzing {
		t.Fatalf("dismiss should resume analyzing, got %s", got)
	}

	close(pipeline.block)
	waitState(t, f.machine, StateFinished)
}

func TestAbortFromListeningResetsDirectly(t *testing.T) {
	f := newFixture(t, &fakePipeline{})
	f.selectExercise(t)

	if got := f.machine.RequestAbort(); got != StateIdle {
		t.Errorf("nothing in flight, abort should reset directly, got %s", got)
	}
	if f.machine.Snapshot().Exercise != nil {
		t.Error("reset should clear the selected exercise")
	}
}

func TestAnalysisFailure(t *testing.T) {
	t.Run("rate limit", func(t *testing.T) {
		pipeline := &fakePipeline{err: errors.New(errors.ErrRateLimit, "quota exceeded")}
		f := newFixture(t, pipeline)
		f.selectExercise(t)
		f.record(t, []byte("chunk"))

		snap := waitState(t, f.machine, StateErrored)
		if snap.Classification != errors.ErrRateLimit {
			t.Errorf("classification = %s", snap.Classification)
		}
		if !f.narrator.sawCue(narration.CueQuota) {
			t.Error("quota failures should speak the quota cue")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		pipeline := &fakePipeline{err: fmt.Errorf("model exploded")}
		f := newFixture(t, pipeline)
		f.selectExercise(t)
		f.record(t, []byte("chunk"))

		snap := waitState(t, f.machine, StateErrored)
		if snap.Classification != errors.ErrUnknown {
			t.Errorf("classification = %s", snap.Classification)
		}
		if f.narrator.sawCue(narration.CueQuota) {
			t.Error("unknown failures must not speak the quota cue")
		}
	})
}

func TestRetryKeepsExercise(t *testing.T) {
	pipeline := &fakePipeline{err: fmt.Errorf("model exploded")}
	f := newFixture(t, pipeline)
	f.selectExercise(t)
	f.record(t, []byte("chunk"))
	waitState(t, f.machine, StateErrored)

	if err := f.machine.Retry(); err != nil {
		t.Fatal(err)
	}
	snap := f.machine.Snapshot()
	if snap.State != StateListening {
		t.Errorf("state = %s, want listening", snap.State)
	}
	if snap.Exercise == nil || snap.Exercise.ID != "tr_artic_1" {
		t.Error("retry must keep the selected exercise")
	}
	if snap.Classification != "" {
		t.Error("retry must clear the classification")
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, &fakePipeline{score: 80})
	f.selectExercise(t)

	if err := f.machine.Reset(); errors.Classify(err).Code != errors.ErrConflict {
		t.Errorf("reset with a session active should conflict, got %v", err)
	}

	f.record(t, []byte("chunk"))
	waitState(t, f.machine, StateFinished)

	if err := f.machine.Reset(); err != nil {
		t.Fatal(err)
	}
	snap := f.machine.Snapshot()
	if snap.State != StateIdle || snap.Exercise != nil || snap.LastResult != nil {
		t.Errorf("reset should clear the session, got %+v", snap)
	}
}

func TestPushChunkOutsideRecording(t *testing.T) {
	f := newFixture(t, &fakePipeline{})
	if err := f.machine.PushChunk([]byte("x")); errors.Classify(err).Code != errors.ErrConflict {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestSelectAfterFinished(t *testing.T) {
	f := newFixture(t, &fakePipeline{score: 70})
	f.selectExercise(t)
	f.record(t, []byte("chunk"))
	waitState(t, f.machine, StateFinished)

	ex, _ := catalog.ByID("tr_ear_1")
	if err := f.machine.Select(context.Background(), "ada", ex, catalog.LanguageTurkish); err != nil {
		t.Fatalf("a finished session should allow a new selection: %v", err)
	}
	if got := f.machine.Snapshot().State; got != StateListening {
		t.Errorf("state = %s, want listening", got)
	}
}
