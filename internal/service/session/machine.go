package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"yorae/internal/logger"
	"yorae/internal/model"
	"yorae/internal/repository"

	"github.com/google/uuid"
)

// Normalizer caps and re-encodes captured stills.
type Normalizer interface {
	Normalize(data []byte) []byte
}

// Compositor merges two normalized images into the comparison image.
type Compositor interface {
	CompositeAt(before, after []byte, minutes int, at time.Time) ([]byte, error)
}

// StillSource produces one captured still, e.g. from a device camera.
type StillSource interface {
	AcquireStill(ctx context.Context) ([]byte, error)
}

// Snapshot is a read-only view of the session without image payloads.
type Snapshot struct {
	Stage          model.Stage `json:"stage"`
	ID             string      `json:"id,omitempty"`
	HasBefore      bool        `json:"hasBefore"`
	HasAfter       bool        `json:"hasAfter"`
	HasMerged      bool        `json:"hasMerged"`
	StartTime      *time.Time  `json:"startTime,omitempty"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	ElapsedMinutes int         `json:"elapsedMinutes"`
	CancelPending  bool        `json:"cancelPending"`
}

// Options tunes the machine.
type Options struct {
	MinDurationMinutes int              // floor for the rendered duration, 0 or 1
	Clock              func() time.Time // defaults to time.Now
}

// Machine drives the before/after capture cycle and owns the single session
// record. Transitions mutate under the lock; normalizing and compositing run
// outside it and are applied only if the session generation is unchanged.
type Machine struct {
	mu            sync.Mutex
	stage         model.Stage
	record        model.SessionRecord
	generation    uint64
	cancelPending bool

	store       repository.SessionRepository
	normalizer  Normalizer
	compositor  Compositor
	now         func() time.Time
	minDuration int
	logger      *logger.Logger
	onChange    func(Snapshot)
}

// NewMachine creates a machine at HOME with an empty session. Call Restore to
// resume a persisted session.
func NewMachine(store repository.SessionRepository, normalizer Normalizer, compositor Compositor, logger *logger.Logger, opts Options) *Machine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Machine{
		stage:       model.StageHome,
		store:       store,
		normalizer:  normalizer,
		compositor:  compositor,
		now:         now,
		minDuration: opts.MinDurationMinutes,
		logger:      logger,
	}
}

// OnChange registers a callback invoked after every applied transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Restore loads the persisted session and picks the stage to resume in.
// A missing or unreadable record leaves an empty session at HOME.
func (m *Machine) Restore() model.Stage {
	record, err := m.store.Load()
	if err != nil {
		m.logger.Warning("Failed to load session, starting empty: %v", err)
		if errors.Is(err, repository.ErrCorrupt) {
			if err := m.store.Clear(); err != nil {
				m.logger.Error("Failed to clear corrupt session: %v", err)
			}
		}
		record = nil
	}

	m.mu.Lock()
	m.generation++
	m.cancelPending = false
	m.record = model.SessionRecord{}
	if record != nil {
		m.record = *record
	}

	switch {
	case len(m.record.MergedImage) > 0:
		m.stage = model.StageResult
	case len(m.record.BeforeImage) > 0 && len(m.record.AfterImage) == 0:
		m.stage = model.StageCleaning
	default:
		m.stage = model.StageHome
		if !m.record.Empty() || len(m.record.AfterImage) > 0 {
			m.logger.Warning("Discarding incomplete session %s", m.record.ID)
			m.record = model.SessionRecord{}
			if err := m.store.Clear(); err != nil {
				m.logger.Error("Failed to clear incomplete session: %v", err)
			}
		}
	}
	stage := m.stage
	m.mu.Unlock()

	m.logger.Info("Session restored at stage %s", stage)
	return stage
}

// Stage returns the current stage.
func (m *Machine) Stage() model.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Snapshot returns the current stage and session metadata.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Record returns a copy of the current session record.
func (m *Machine) Record() model.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.Clone()
}

// ElapsedMinutes is the rendered duration of the current session, 0 while
// either timestamp is missing.
func (m *Machine) ElapsedMinutes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

// BeginBeforeCapture opens the camera for the before photo.
func (m *Machine) BeginBeforeCapture() error {
	return m.move("start capture", model.StageBeforeCapture, model.StageHome)
}

// BeginAfterCapture opens the camera for the after photo.
func (m *Machine) BeginAfterCapture() error {
	return m.move("finish cleaning", model.StageAfterCapture, model.StageCleaning)
}

// EnterChat switches to the chat sub-mode. The session record is untouched.
func (m *Machine) EnterChat() error {
	return m.move("enter chat", model.StageChat, model.StageHome)
}

// Back leaves a camera or chat screen without changing session data.
func (m *Machine) Back() error {
	m.mu.Lock()
	var target model.Stage
	switch m.stage {
	case model.StageBeforeCapture, model.StageChat:
		target = model.StageHome
	case model.StageAfterCapture:
		target = model.StageCleaning
	default:
		from := m.stage
		m.mu.Unlock()
		return &TransitionError{From: from, Op: "go back"}
	}
	m.stage = target
	m.cancelPending = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// AcceptBeforeCapture stores the before photo, starts the timer and moves to
// CLEANING. Leftovers of a previous session are dropped.
func (m *Machine) AcceptBeforeCapture(image []byte) error {
	gen, err := m.expect("accept before photo", model.StageBeforeCapture)
	if err != nil {
		return err
	}

	normalized := m.normalizer.Normalize(image)

	m.mu.Lock()
	if m.generation != gen || m.stage != model.StageBeforeCapture {
		m.mu.Unlock()
		return ErrStaleSession
	}
	start := m.now()
	m.record = model.SessionRecord{
		ID:          uuid.NewString(),
		BeforeImage: normalized,
		StartTime:   &start,
	}
	m.generation++
	m.stage = model.StageCleaning
	m.persistLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("Session %s started", snap.ID)
	m.notify(snap)
	return nil
}

// ReplaceBeforeImage swaps the before photo while cleaning is in progress.
// The start time is kept.
func (m *Machine) ReplaceBeforeImage(image []byte) error {
	gen, err := m.expect("replace before photo", model.StageCleaning, model.StageAfterCapture)
	if err != nil {
		return err
	}

	normalized := m.normalizer.Normalize(image)

	m.mu.Lock()
	if m.generation != gen || len(m.record.BeforeImage) == 0 ||
		!stageIn(m.stage, []model.Stage{model.StageCleaning, model.StageAfterCapture}) {
		m.mu.Unlock()
		return ErrStaleSession
	}
	// a merge started from the old photo must not land
	m.generation++
	m.record.BeforeImage = normalized
	m.persistLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("Session %s: before photo replaced", snap.ID)
	m.notify(snap)
	return nil
}

// AcceptAfterCapture stores the after photo, merges both photos and moves to
// RESULT. Without a before photo the machine falls back to HOME untouched.
// When merging fails the machine stays in AFTER_CAPTURE and nothing is saved.
func (m *Machine) AcceptAfterCapture(image []byte) error {
	m.mu.Lock()
	if len(m.record.BeforeImage) == 0 {
		m.stage = model.StageHome
		m.cancelPending = false
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.logger.Warning("After photo received without a before photo, returning home")
		m.notify(snap)
		return ErrNoBeforeImage
	}
	if m.stage != model.StageAfterCapture {
		from := m.stage
		m.mu.Unlock()
		return &TransitionError{From: from, Op: "accept after photo"}
	}
	gen := m.generation
	id := m.record.ID
	before := m.record.BeforeImage
	var start *time.Time
	if m.record.StartTime != nil {
		t := *m.record.StartTime
		start = &t
	}
	m.mu.Unlock()

	normalized := m.normalizer.Normalize(image)
	end := m.now()
	if start == nil {
		start = &end
	}
	minutes := DurationMinutes(*start, end, m.minDuration)

	merged, err := m.compositor.CompositeAt(before, normalized, minutes, end)

	m.mu.Lock()
	if m.generation != gen || m.stage != model.StageAfterCapture {
		m.mu.Unlock()
		m.logger.Info("Session %s changed while merging, result discarded", id)
		return ErrStaleSession
	}
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("Session %s: merge failed: %v", id, err)
		return fmt.Errorf("%w: %v", ErrCompositeFailed, err)
	}
	m.record.AfterImage = normalized
	m.record.EndTime = &end
	m.record.MergedImage = merged
	m.stage = model.StageResult
	m.persistLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("Session %s finished after %d minute(s)", id, minutes)
	m.notify(snap)
	return nil
}

// Accept routes an uploaded still to the before or after handler by stage.
func (m *Machine) Accept(image []byte) error {
	if m.Stage() == model.StageBeforeCapture {
		return m.AcceptBeforeCapture(image)
	}
	return m.AcceptAfterCapture(image)
}

// Capture acquires a still from src and accepts it. Acquisition failures
// leave the session untouched.
func (m *Machine) Capture(ctx context.Context, src StillSource) error {
	stage := m.Stage()
	if stage != model.StageBeforeCapture && stage != model.StageAfterCapture {
		return &TransitionError{From: stage, Op: "capture"}
	}

	image, err := src.AcquireStill(ctx)
	if err != nil {
		m.logger.Warning("Capture failed at stage %s: %v", stage, err)
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	return m.Accept(image)
}

// Reset discards the session and its persisted copy and returns to HOME.
// Work still in flight for the old session is discarded when it completes.
func (m *Machine) Reset() error {
	m.mu.Lock()
	m.record = model.SessionRecord{}
	m.stage = model.StageHome
	m.cancelPending = false
	m.generation++
	err := m.store.Clear()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Failed to clear persisted session: %v", err)
	}
	m.logger.Info("Session reset")
	m.notify(snap)
	return err
}

// RequestCancel asks for confirmation before discarding a session in progress.
func (m *Machine) RequestCancel() error {
	m.mu.Lock()
	if m.stage != model.StageCleaning {
		from := m.stage
		m.mu.Unlock()
		return &TransitionError{From: from, Op: "cancel"}
	}
	m.cancelPending = true
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// ConfirmCancel resets the session once a cancel was requested.
func (m *Machine) ConfirmCancel() error {
	m.mu.Lock()
	pending := m.cancelPending
	from := m.stage
	m.mu.Unlock()

	if !pending {
		return &TransitionError{From: from, Op: "confirm cancel"}
	}
	return m.Reset()
}

// DismissCancel keeps the session after a cancel request.
func (m *Machine) DismissCancel() {
	m.mu.Lock()
	if !m.cancelPending {
		m.mu.Unlock()
		return
	}
	m.cancelPending = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// move performs a data-free transition to target from one of the allowed stages.
func (m *Machine) move(op string, target model.Stage, from ...model.Stage) error {
	m.mu.Lock()
	if !stageIn(m.stage, from) {
		current := m.stage
		m.mu.Unlock()
		return &TransitionError{From: current, Op: op}
	}
	m.stage = target
	m.cancelPending = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// expect checks the stage and returns the generation to validate against later.
func (m *Machine) expect(op string, allowed ...model.Stage) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !stageIn(m.stage, allowed) {
		return 0, &TransitionError{From: m.stage, Op: op}
	}
	return m.generation, nil
}

// persistLocked saves the record, or clears storage once nothing is left.
func (m *Machine) persistLocked() {
	var err error
	if m.record.Empty() {
		err = m.store.Clear()
	} else {
		err = m.store.Save(&m.record)
	}
	if err != nil {
		m.logger.Error("Failed to persist session: %v", err)
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		Stage:          m.stage,
		ID:             m.record.ID,
		HasBefore:      len(m.record.BeforeImage) > 0,
		HasAfter:       len(m.record.AfterImage) > 0,
		HasMerged:      len(m.record.MergedImage) > 0,
		ElapsedMinutes: m.elapsedLocked(),
		CancelPending:  m.cancelPending,
	}
	if m.record.StartTime != nil {
		t := *m.record.StartTime
		s.StartTime = &t
	}
	if m.record.EndTime != nil {
		t := *m.record.EndTime
		s.EndTime = &t
	}
	return s
}

func (m *Machine) elapsedLocked() int {
	if m.record.StartTime == nil || m.record.EndTime == nil {
		return 0
	}
	return DurationMinutes(*m.record.StartTime, *m.record.EndTime, m.minDuration)
}

func (m *Machine) notify(s Snapshot) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func stageIn(stage model.Stage, stages []model.Stage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}
