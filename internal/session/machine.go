// Package session orchestrates one exercise session at a time: exercise
// selection, listening, recording, analysis and result aggregation. The
// machine mediates between the capture controller, the analysis pipeline, the
// progress store and the narration gateway.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/analysis"
	"github.com/windfall/cicero/internal/capture"
	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/errors"
	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/internal/progress"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateRecording    State = "recording"
	StateAnalyzing    State = "analyzing"
	StateFinished     State = "finished"
	StateErrored      State = "errored"
	StatePendingAbort State = "pending_abort"
)

// terminal reports whether a new exercise may be selected from s.
func terminal(s State) bool {
	return s == StateIdle || s == StateFinished || s == StateErrored
}

// Pipeline is the analysis collaborator as the machine sees it.
type Pipeline interface {
	Analyze(ctx context.Context, audio []byte, mimeType string, ex catalog.Exercise, lang catalog.Language, historyDigest string) (*analysis.Result, error)
}

// Store is the slice of the progress store the machine mutates.
type Store interface {
	Load(ctx context.Context, profile string) (progress.UserProgress, bool, error)
	AppendResult(ctx context.Context, profile string, res analysis.Result) (progress.UserProgress, error)
}

// Narrator emits best-effort spoken cues. Calls never block.
type Narrator interface {
	Announce(profile, text string, lang catalog.Language, delay time.Duration)
	AnnounceCue(profile string, cue narration.Cue, lang catalog.Language, delay time.Duration)
}

// Publisher broadcasts completion events, fire-and-forget.
type Publisher interface {
	PublishAsync(ctx context.Context, data interface{})
}

// CompletedEvent is published after a result is folded into the record.
type CompletedEvent struct {
	Profile       string  `json:"profile"`
	ResultID      string  `json:"result_id"`
	ExerciseID    string  `json:"exercise_id"`
	ExerciseTitle string  `json:"exercise_title"`
	Score         float64 `json:"score"`
}

// Machine is the session state machine. At most one exercise session is
// active at a time; every transition is serialized by the mutex, and every
// asynchronous completion is guarded by the session epoch captured at
// dispatch so a late result never lands on a since-reset session.
type Machine struct {
	capture   *capture.Controller
	pipeline  Pipeline
	store     Store
	narrator  Narrator
	publisher Publisher
	log       zerolog.Logger

	mu             sync.Mutex
	state          State
	prior          State
	epoch          string
	profile        string
	language       catalog.Language
	exercise       *catalog.Exercise
	recording      *capture.Recording
	classification errors.ErrorCode
	lastResult     *analysis.Result
}

// NewMachine creates an idle session machine. publisher may be nil.
func NewMachine(cap *capture.Controller, pipeline Pipeline, store Store, narrator Narrator, publisher Publisher, log zerolog.Logger) *Machine {
	return &Machine{
		capture:   cap,
		pipeline:  pipeline,
		store:     store,
		narrator:  narrator,
		publisher: publisher,
		log:       log,
		state:     StateIdle,
		epoch:     uuid.New().String(),
	}
}

// Snapshot is a read-only view of the machine for the UI layer.
type Snapshot struct {
	State          State             `json:"state"`
	Profile        string            `json:"profile,omitempty"`
	Exercise       *catalog.Exercise `json:"exercise,omitempty"`
	Classification errors.ErrorCode  `json:"classification,omitempty"`
	LastResult     *analysis.Result  `json:"last_result,omitempty"`
}

// Snapshot returns the current session view.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:          m.state,
		Profile:        m.profile,
		Exercise:       m.exercise,
		Classification: m.classification,
		LastResult:     m.lastResult,
	}
}

// Select starts a new session for an exercise. Rejected while another session
// is active: the machine must be in Idle, Finished or Errored first.
func (m *Machine) Select(ctx context.Context, profile string, ex catalog.Exercise, lang catalog.Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !terminal(m.state) {
		return errors.New(errors.ErrConflict, "another exercise session is active")
	}
	if ex.Text == "" {
		return errors.Validation("exercise has no target text")
	}

	m.state = StateListening
	m.epoch = uuid.New().String()
	m.profile = profile
	m.language = lang
	m.exercise = &ex
	m.classification = ""
	m.lastResult = nil

	m.log.Info().
		Str("profile", profile).
		Str("exercise", ex.ID).
		Str("language", string(lang)).
		Msg("Exercise selected, session listening")

	m.narrator.Announce(profile, narration.InstructionFor(ex), lang, 500*time.Millisecond)
	return nil
}

// StartRecording acquires the capture device and moves to Recording. On a
// device failure the transition is aborted: state stays Listening and the
// classified error is returned for the banner.
func (m *Machine) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateListening {
		return errors.New(errors.ErrConflict, "session is not listening")
	}

	rec, err := m.capture.Acquire(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Capture acquisition failed, staying in listening")
		return errors.Classify(err)
	}

	m.recording = rec
	m.state = StateRecording
	m.narrator.AnnounceCue(m.profile, narration.CueRecording, m.language, 0)
	return nil
}

// PushChunk appends one encoded audio chunk to the in-flight recording.
func (m *Machine) PushChunk(chunk []byte) error {
	m.mu.Lock()
	rec := m.recording
	state := m.state
	m.mu.Unlock()

	if state != StateRecording || rec == nil {
		return errors.New(errors.ErrConflict, "no recording in flight")
	}
	return rec.Push(chunk)
}

// StopRecording finalizes the capture and dispatches analysis. An empty
// artifact never reaches the pipeline: the session goes straight to Errored
// with the empty-artifact classification and offers retry.
func (m *Machine) StopRecording(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording || m.recording == nil {
		return errors.New(errors.ErrConflict, "session is not recording")
	}

	artifact, err := m.capture.Finalize(ctx, m.recording)
	m.recording = nil
	if err != nil {
		m.state = StateErrored
		m.classification = errors.Classify(err).Code
		return err
	}

	if artifact.Empty() {
		m.log.Warn().Msg("Finalized capture is empty, skipping analysis")
		m.state = StateErrored
		m.classification = errors.ErrEmptyArtifact
		return nil
	}

	m.narrator.AnnounceCue(m.profile, narration.CueAnalyzing, m.language, 100*time.Millisecond)
	m.state = StateAnalyzing
	epoch := m.epoch
	ex := *m.exercise
	profile := m.profile
	lang := m.language

	go m.runAnalysis(epoch, profile, artifact, ex, lang)
	return nil
}

// runAnalysis performs the pipeline round-trip off the caller and folds the
// outcome back in under the epoch guard.
func (m *Machine) runAnalysis(epoch, profile string, artifact capture.Artifact, ex catalog.Exercise, lang catalog.Language) {
	// Detached context: navigation away must not cancel the call mid-flight;
	// PendingAbort discards interest in the result instead.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	digest := "No history."
	if rec, ok, err := m.store.Load(ctx, profile); err == nil && ok {
		digest = rec.HistoryDigest(3)
	}

	result, err := m.pipeline.Analyze(ctx, artifact.Data, artifact.MimeType, ex, lang, digest)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		m.log.Info().Str("exercise", ex.ID).Msg("Session reset while analyzing, discarding late result")
		return
	}

	if err != nil {
		classified := errors.Classify(err)
		m.state = StateErrored
		m.classification = classified.Code
		m.log.Error().Err(err).Str("classification", string(classified.Code)).Msg("Analysis failed")
		if classified.Code == errors.ErrRateLimit {
			m.narrator.AnnounceCue(profile, narration.CueQuota, lang, 0)
		}
		return
	}

	if _, err := m.store.AppendResult(ctx, profile, *result); err != nil {
		m.state = StateErrored
		m.classification = errors.Classify(err).Code
		m.log.Error().Err(err).Msg("Failed to persist analysis result")
		return
	}

	m.state = StateFinished
	m.lastResult = result
	m.narrator.AnnounceCue(profile, narration.CueFinished, lang, 200*time.Millisecond)

	if m.publisher != nil {
		m.publisher.PublishAsync(ctx, CompletedEvent{
			Profile:       profile,
			ResultID:      result.ID,
			ExerciseID:    ex.ID,
			ExerciseTitle: ex.Title,
			Score:         result.Score,
		})
	}
}

// RequestAbort handles navigation away. With capture or analysis in flight it
// enters the confirmation sub-state without cancelling any work; otherwise it
// resets to Idle directly.
func (m *Machine) RequestAbort() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateRecording, StateAnalyzing:
		m.prior = m.state
		m.state = StatePendingAbort
	case StateIdle, StatePendingAbort:
		// nothing to do
	default:
		m.resetLocked()
	}
	return m.state
}

// ConfirmAbort discards the in-flight session: the epoch is bumped so a late
// analysis result is dropped, the capture handle is released and the machine
// returns to Idle. The underlying network call is not torn down.
func (m *Machine) ConfirmAbort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePendingAbort {
		return errors.New(errors.ErrConflict, "no abort pending")
	}

	if m.recording != nil {
		m.capture.Release(m.recording)
		m.recording = nil
	}
	profile, lang := m.profile, m.language
	m.resetLocked()
	m.narrator.AnnounceCue(profile, narration.CueCancelled, lang, 0)
	m.log.Info().Msg("Session aborted by user")
	return nil
}

// DismissAbort returns to the prior state unchanged.
func (m *Machine) DismissAbort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePendingAbort {
		return errors.New(errors.ErrConflict, "no abort pending")
	}
	m.state = m.prior
	return nil
}

// Retry returns an ended session to Listening without losing the selected
// exercise.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateErrored && m.state != StateFinished {
		return errors.New(errors.ErrConflict, "session has not ended")
	}
	if m.exercise == nil {
		return errors.New(errors.ErrConflict, "no exercise selected")
	}
	m.state = StateListening
	m.classification = ""
	m.narrator.Announce(m.profile, narration.InstructionFor(*m.exercise), m.language, 500*time.Millisecond)
	return nil
}

// Reset returns the machine to Idle. Rejected while capture or analysis is in
// flight; use RequestAbort for that path.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !terminal(m.state) {
		return errors.New(errors.ErrConflict, "session is active, abort first")
	}
	m.resetLocked()
	return nil
}

func (m *Machine) resetLocked() {
	m.state = StateIdle
	m.epoch = uuid.New().String()
	m.exercise = nil
	m.recording = nil
	m.classification = ""
	m.lastResult = nil
}
