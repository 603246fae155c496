// Package tracker owns the medication list and today's doses for one user.
// It is the only writer of that state and persists every change through a
// Repository.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/doses"
	apperrors "github.com/gmsas95/pillpal/internal/errors"
	"github.com/gmsas95/pillpal/internal/metrics"
)

// ErrNotFound is returned by a Repository when nothing has been stored yet.
var ErrNotFound = errors.New("tracker: no stored data")

// Repository persists medications and doses as whole lists.
type Repository interface {
	LoadMedications(ctx context.Context) ([]doses.Medication, error)
	SaveMedications(ctx context.Context, meds []doses.Medication) error
	LoadDoses(ctx context.Context) ([]doses.Dose, error)
	SaveDoses(ctx context.Context, list []doses.Dose) error
}

// MedicationInput is a medication before it has an id.
type MedicationInput struct {
	Name         string          `json:"name"`
	Dosage       string          `json:"dosage"`
	Frequency    doses.Frequency `json:"frequency"`
	StartTime    doses.ClockTime `json:"startTime"`
	Observations string          `json:"observations,omitempty"`
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithSeed sets the medications used when nothing is stored.
func WithSeed(meds []doses.Medication) Option {
	return func(t *Tracker) { t.seed = meds }
}

func WithPolicy(p doses.Policy) Option {
	return func(t *Tracker) { t.policy = p }
}

func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) { t.newID = gen }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

type Tracker struct {
	repo    Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	seed    []doses.Medication
	policy  doses.Policy
	newID   func() string

	mu    sync.RWMutex
	meds  []doses.Medication
	doses []doses.Dose
}

func New(repo Repository, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		repo:    repo,
		logger:  logger,
		metrics: metrics.Default(),
		now:     time.Now,
		policy:  doses.NoPolicy,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load restores state from the repository. Missing or unreadable data falls
// back to the seed medications and a freshly generated day.
func (t *Tracker) Load(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	seeded := false

	meds, err := t.repo.LoadMedications(ctx)
	if err != nil {
		t.logLoadFailure("medications", err)
		meds = append([]doses.Medication(nil), t.seed...)
		seeded = true
	}

	list, err := t.repo.LoadDoses(ctx)
	if err != nil {
		t.logLoadFailure("doses", err)
		list = doses.GenerateDay(meds, now)
	}

	t.meds = meds
	t.doses = list
	t.reconcileLocked(now)

	if seeded {
		t.saveMedicationsLocked(ctx)
	}
	t.saveDosesLocked(ctx)

	t.logger.Info("Tracker loaded",
		zap.Int("medications", len(t.meds)),
		zap.Int("doses", len(t.doses)),
		zap.Bool("seeded", seeded),
	)
}

func (t *Tracker) logLoadFailure(what string, err error) {
	if errors.Is(err, ErrNotFound) {
		t.logger.Info("No stored data, using defaults", zap.String("blob", what))
		return
	}
	t.metrics.RecordPersistenceError("load_" + what)
	t.logger.Warn("Failed to load stored data, using defaults", zap.String("blob", what), zap.Error(err))
}

// Refresh reconciles today's doses against the clock and persists the list
// when it changed. It is called on every scheduler tick.
func (t *Tracker) Refresh(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := t.reconcileLocked(t.now())
	t.metrics.RecordReconcile(changed)
	if changed {
		t.saveDosesLocked(ctx)
	}
	return changed
}

func (t *Tracker) reconcileLocked(now time.Time) bool {
	next := doses.Reconcile(t.meds, t.doses, now)
	next = doses.PruneOrphans(next, t.meds)
	next = t.policy(next, now)

	changed := !doses.Equal(next, t.doses)
	t.doses = next

	a := doses.ComputeAdherence(t.doses, now)
	t.metrics.SetAdherence(a.Rate, a.Pending)
	return changed
}

// AddMedication validates in, assigns an id and schedules its doses for today.
func (t *Tracker) AddMedication(ctx context.Context, in MedicationInput) (doses.Medication, error) {
	med := doses.Medication{
		Name:         in.Name,
		Dosage:       in.Dosage,
		Frequency:    in.Frequency,
		StartTime:    in.StartTime,
		Observations: in.Observations,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	med.ID = t.newID()
	if err := med.Validate(); err != nil {
		return doses.Medication{}, apperrors.ErrMedicationInvalid.WithCause(err)
	}

	t.meds = append(append([]doses.Medication(nil), t.meds...), med)
	t.reconcileLocked(t.now())
	t.saveMedicationsLocked(ctx)
	t.saveDosesLocked(ctx)

	t.logger.Info("Medication added",
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
		zap.Int("frequency", int(med.Frequency)),
	)
	return med, nil
}

// DeleteMedication removes a medication and every dose it owns.
func (t *Tracker) DeleteMedication(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, m := range t.meds {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.ErrMedicationNotFound.WithMessage("medication %s not found", id)
	}

	meds := make([]doses.Medication, 0, len(t.meds)-1)
	meds = append(meds, t.meds[:idx]...)
	meds = append(meds, t.meds[idx+1:]...)
	t.meds = meds
	t.doses = doses.RemoveMedication(t.doses, id)

	t.saveMedicationsLocked(ctx)
	t.saveDosesLocked(ctx)

	t.logger.Info("Medication deleted", zap.String("medication_id", id))
	return nil
}

// SetDoseStatus marks a dose taken or skipped. An unknown dose id is ignored
// and reported as not applied.
func (t *Tracker) SetDoseStatus(ctx context.Context, doseID string, status doses.Status) (doses.Dose, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := doses.SetStatus(t.doses, doseID, status)
	if err != nil {
		return doses.Dose{}, false, apperrors.ErrDoseStatusInvalid.WithCause(err)
	}

	d, ok := doses.Find(next, doseID)
	if !ok {
		t.logger.Debug("Ignoring status change for unknown dose", zap.String("dose_id", doseID))
		return doses.Dose{}, false, nil
	}

	t.doses = next
	t.metrics.RecordDoseStatus(string(status))
	a := doses.ComputeAdherence(t.doses, t.now())
	t.metrics.SetAdherence(a.Rate, a.Pending)
	t.saveDosesLocked(ctx)

	t.logger.Info("Dose status updated",
		zap.String("dose_id", doseID),
		zap.String("status", string(status)),
	)
	return d, true, nil
}

// SetPolicy swaps the reconciliation policy. It applies from the next Refresh.
func (t *Tracker) SetPolicy(p doses.Policy) {
	if p == nil {
		p = doses.NoPolicy
	}
	t.mu.Lock()
	t.policy = p
	t.mu.Unlock()
}

func (t *Tracker) Medications() []doses.Medication {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]doses.Medication(nil), t.meds...)
}

func (t *Tracker) Medication(id string) (doses.Medication, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.meds {
		if m.ID == id {
			return m, true
		}
	}
	return doses.Medication{}, false
}

// Doses returns the stored list as is.
func (t *Tracker) Doses() []doses.Dose {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]doses.Dose(nil), t.doses...)
}

// TodayDoses returns today's doses in chronological order.
func (t *Tracker) TodayDoses() []doses.Dose {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return doses.SortByTime(doses.Today(t.doses, t.now()))
}

func (t *Tracker) Adherence() doses.Adherence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return doses.ComputeAdherence(t.doses, t.now())
}

func (t *Tracker) AdherenceByMedication() []doses.MedicationAdherence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return doses.AdherenceByMedication(t.doses, t.meds, t.now())
}

// Reminders returns the pending doses due in now's minute.
func (t *Tracker) Reminders(now time.Time) []doses.Reminder {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return doses.DueReminders(t.doses, t.meds, now)
}

// Now returns the tracker's clock reading.
func (t *Tracker) Now() time.Time {
	return t.now()
}

func (t *Tracker) saveMedicationsLocked(ctx context.Context) {
	if err := t.repo.SaveMedications(ctx, t.meds); err != nil {
		t.metrics.RecordPersistenceError("save_medications")
		t.logger.Error("Failed to save medications", zap.Error(apperrors.ErrStoreSave.WithCause(err)))
	}
}

func (t *Tracker) saveDosesLocked(ctx context.Context) {
	if err := t.repo.SaveDoses(ctx, t.doses); err != nil {
		t.metrics.RecordPersistenceError("save_doses")
		t.logger.Error("Failed to save doses", zap.Error(apperrors.ErrStoreSave.WithCause(err)))
	}
}
