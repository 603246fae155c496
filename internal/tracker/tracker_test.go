package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/pillpal/internal/doses"
	apperrors "github.com/gmsas95/pillpal/internal/errors"
	"github.com/gmsas95/pillpal/internal/metrics"
)

type fakeRepo struct {
	mu       sync.Mutex
	meds     []doses.Medication
	doses    []doses.Dose
	loadErr  error
	saveErr  error
	medSaves int
	doseSave int
}

func (f *fakeRepo) LoadMedications(context.Context) ([]doses.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.meds == nil {
		return nil, ErrNotFound
	}
	return append([]doses.Medication(nil), f.meds...), nil
}

func (f *fakeRepo) SaveMedications(_ context.Context, meds []doses.Medication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.medSaves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.meds = append([]doses.Medication{}, meds...)
	return nil
}

func (f *fakeRepo) LoadDoses(context.Context) ([]doses.Dose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.doses == nil {
		return nil, ErrNotFound
	}
	return append([]doses.Dose(nil), f.doses...), nil
}

func (f *fakeRepo) SaveDoses(_ context.Context, list []doses.Dose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doseSave++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.doses = append([]doses.Dose{}, list...)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var loc = time.FixedZone("BRT", -3*3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, loc)
}

func seed() []doses.Medication {
	return []doses.Medication{
		{ID: "1", Name: "Lisinopril", Dosage: "10mg", Frequency: doses.Every24Hours, StartTime: doses.MustClockTime("08:00"), Observations: "Take on a full stomach"},
		{ID: "2", Name: "Metformina", Dosage: "500mg", Frequency: doses.Every12Hours, StartTime: doses.MustClockTime("09:00")},
	}
}

func newTracker(t *testing.T, repo *fakeRepo, c *clock, opts ...Option) *Tracker {
	t.Helper()
	n := 0
	base := []Option{
		WithClock(c.Now),
		WithSeed(seed()),
		WithMetrics(metrics.New()),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("med-%d", n)
		}),
	}
	tr := New(repo, nil, append(base, opts...)...)
	tr.Load(context.Background())
	return tr
}

func TestLoad_FallsBackToSeed(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	assert.Equal(t, seed(), tr.Medications())
	assert.Len(t, tr.Doses(), 3)
	assert.Equal(t, seed(), repo.meds, "seeded medications are persisted")
	assert.Len(t, repo.doses, 3)
}

func TestLoad_ReadErrorFallsBackToSeed(t *testing.T) {
	repo := &fakeRepo{loadErr: errors.New("disk on fire")}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	assert.Equal(t, seed(), tr.Medications())
	assert.Len(t, tr.Doses(), 3)
}

func TestLoad_RestoresStoredStatuses(t *testing.T) {
	meds := seed()
	stored := doses.GenerateDay(meds, at(10, 0, 0))
	stored, err := doses.SetStatus(stored, doses.DoseID("1", at(10, 8, 0)), doses.StatusTaken)
	require.NoError(t, err)

	repo := &fakeRepo{meds: meds, doses: stored}
	c := &clock{now: at(10, 12, 0)}
	tr := newTracker(t, repo, c)

	d, ok := doses.Find(tr.Doses(), doses.DoseID("1", at(10, 8, 0)))
	require.True(t, ok)
	assert.Equal(t, doses.StatusTaken, d.Status)
	assert.Equal(t, 0, repo.medSaves, "stored medications are not rewritten on load")
}

func TestLoad_DropsPreviousDay(t *testing.T) {
	meds := seed()
	yesterday := doses.GenerateDay(meds, at(9, 0, 0))
	repo := &fakeRepo{meds: meds, doses: yesterday}
	c := &clock{now: at(10, 6, 0)}
	tr := newTracker(t, repo, c)

	for _, d := range tr.Doses() {
		assert.True(t, doses.SameDay(d.ScheduledTime, at(10, 0, 0)))
		assert.Equal(t, doses.StatusPending, d.Status)
	}
}

func TestRefresh_DayRollover(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 21, 0)}
	tr := newTracker(t, repo, c)

	_, ok, err := tr.SetDoseStatus(context.Background(), doses.DoseID("2", at(10, 21, 0)), doses.StatusTaken)
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, tr.Refresh(context.Background()), "nothing changes within the same day")

	c.Set(at(11, 0, 1))
	assert.True(t, tr.Refresh(context.Background()))

	today := tr.TodayDoses()
	require.Len(t, today, 3)
	for _, d := range today {
		assert.Equal(t, doses.StatusPending, d.Status)
		assert.True(t, doses.SameDay(d.ScheduledTime, at(11, 0, 0)))
	}
	assert.True(t, doses.Equal(tr.Doses(), repo.doses), "the new day is persisted")
}

func TestRefresh_AppliesPolicy(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	tr.SetPolicy(doses.AutoSkipPastDue(time.Hour))
	c.Set(at(10, 9, 30))
	assert.True(t, tr.Refresh(context.Background()))

	d, _ := doses.Find(tr.Doses(), doses.DoseID("1", at(10, 8, 0)))
	assert.Equal(t, doses.StatusSkipped, d.Status)
	d, _ = doses.Find(tr.Doses(), doses.DoseID("2", at(10, 9, 0)))
	assert.Equal(t, doses.StatusPending, d.Status, "inside the grace period")

	tr.SetPolicy(nil)
	assert.False(t, tr.Refresh(context.Background()))
}

func TestAddMedication(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	med, err := tr.AddMedication(context.Background(), MedicationInput{
		Name:      "Amoxicilina",
		Dosage:    "250mg",
		Frequency: doses.Every8Hours,
		StartTime: doses.MustClockTime("07:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "med-1", med.ID)

	got, ok := tr.Medication("med-1")
	require.True(t, ok)
	assert.Equal(t, med, got)

	var owned int
	for _, d := range tr.Doses() {
		if d.MedicationID == med.ID {
			owned++
		}
	}
	assert.Equal(t, 3, owned)
	assert.Len(t, repo.meds, 3)
	assert.Len(t, repo.doses, 6)
}

func TestAddMedication_Invalid(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	_, err := tr.AddMedication(context.Background(), MedicationInput{Name: "X", Dosage: "1mg", Frequency: 6, StartTime: doses.MustClockTime("08:00")})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMedicationInvalid)
	assert.ErrorIs(t, err, doses.ErrInvalidMedication)
	assert.Len(t, tr.Medications(), 2)
}

func TestDeleteMedication(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	require.NoError(t, tr.DeleteMedication(context.Background(), "2"))

	assert.Len(t, tr.Medications(), 1)
	for _, d := range tr.Doses() {
		assert.NotEqual(t, "2", d.MedicationID)
	}
	assert.Len(t, repo.doses, 1)

	err := tr.DeleteMedication(context.Background(), "2")
	assert.ErrorIs(t, err, apperrors.ErrMedicationNotFound)
}

func TestSetDoseStatus(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 10, 0)}
	tr := newTracker(t, repo, c)
	id := doses.DoseID("1", at(10, 8, 0))

	d, ok, err := tr.SetDoseStatus(context.Background(), id, doses.StatusTaken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, doses.StatusTaken, d.Status)

	stored, _ := doses.Find(repo.doses, id)
	assert.Equal(t, doses.StatusTaken, stored.Status)

	a := tr.Adherence()
	assert.Equal(t, 1, a.Taken)
	assert.Equal(t, 100, a.Rate)

	_, _, err = tr.SetDoseStatus(context.Background(), doses.DoseID("2", at(10, 9, 0)), doses.StatusSkipped)
	require.NoError(t, err)
	assert.Equal(t, 50, tr.Adherence().Rate)
}

func TestSetDoseStatus_UnknownIsNoop(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 10, 0)}
	tr := newTracker(t, repo, c)
	before := tr.Doses()
	saves := repo.doseSave

	_, ok, err := tr.SetDoseStatus(context.Background(), "nope", doses.StatusTaken)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, tr.Doses())
	assert.Equal(t, saves, repo.doseSave)
}

func TestSetDoseStatus_RejectsPending(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 10, 0)}
	tr := newTracker(t, repo, c)

	_, _, err := tr.SetDoseStatus(context.Background(), doses.DoseID("1", at(10, 8, 0)), doses.StatusPending)
	assert.ErrorIs(t, err, apperrors.ErrDoseStatusInvalid)
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 10, 0)}
	tr := newTracker(t, repo, c)
	repo.saveErr = errors.New("quota exceeded")

	id := doses.DoseID("1", at(10, 8, 0))
	_, ok, err := tr.SetDoseStatus(context.Background(), id, doses.StatusTaken)
	require.NoError(t, err)
	require.True(t, ok)

	d, _ := doses.Find(tr.Doses(), id)
	assert.Equal(t, doses.StatusTaken, d.Status)
}

func TestTodayDosesSorted(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	today := tr.TodayDoses()
	require.Len(t, today, 3)
	assert.Equal(t, at(10, 8, 0), today[0].ScheduledTime)
	assert.Equal(t, at(10, 9, 0), today[1].ScheduledTime)
	assert.Equal(t, at(10, 21, 0), today[2].ScheduledTime)
}

func TestReminders(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 7, 0)}
	tr := newTracker(t, repo, c)

	rs := tr.Reminders(at(10, 8, 0).Add(30 * time.Second))
	require.Len(t, rs, 1)
	assert.Equal(t, "Lisinopril", rs[0].Medication.Name)

	_, _, err := tr.SetDoseStatus(context.Background(), rs[0].Dose.ID, doses.StatusTaken)
	require.NoError(t, err)
	assert.Empty(t, tr.Reminders(at(10, 8, 0)))
}

func TestAdherenceByMedication(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 22, 0)}
	tr := newTracker(t, repo, c)

	_, _, err := tr.SetDoseStatus(context.Background(), doses.DoseID("2", at(10, 9, 0)), doses.StatusTaken)
	require.NoError(t, err)
	_, _, err = tr.SetDoseStatus(context.Background(), doses.DoseID("2", at(10, 21, 0)), doses.StatusSkipped)
	require.NoError(t, err)

	per := tr.AdherenceByMedication()
	require.Len(t, per, 2)
	assert.Equal(t, "1", per[0].MedicationID)
	assert.Equal(t, 100, per[0].Rate)
	assert.Equal(t, 50, per[1].Rate)
}

func TestConcurrentStatusChanges(t *testing.T) {
	repo := &fakeRepo{}
	c := &clock{now: at(10, 22, 0)}
	tr := newTracker(t, repo, c)

	ids := []string{
		doses.DoseID("1", at(10, 8, 0)),
		doses.DoseID("2", at(10, 9, 0)),
		doses.DoseID("2", at(10, 21, 0)),
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, _ = tr.SetDoseStatus(context.Background(), id, doses.StatusTaken)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, tr.Adherence().Taken, "no update is lost")
	assert.True(t, doses.Equal(tr.Doses(), repo.doses))
}
