package doses

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loc = time.FixedZone("BRT", -3*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, loc)
}

func med(id string, freq Frequency, start string) Medication {
	return Medication{ID: id, Name: "Med " + id, Dosage: "10mg", Frequency: freq, StartTime: MustClockTime(start)}
}

func scheduledClock(list []Dose) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.ScheduledTime.Format("15:04"))
	}
	return out
}

// Scheduler

func TestGenerateDoses_DailyWindow(t *testing.T) {
	start, end := DayWindow(at(10, 14, 30))

	got := GenerateDoses(med("a", Every24Hours, "08:00"), start, end)

	require.Len(t, got, 1)
	assert.Equal(t, at(10, 8, 0), got[0].ScheduledTime)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Equal(t, "a", got[0].MedicationID)
}

func TestGenerateDoses_FrequencySpacing(t *testing.T) {
	tests := []struct {
		name  string
		freq  Frequency
		start string
		want  []string
	}{
		{name: "every 8h", freq: Every8Hours, start: "07:00", want: []string{"07:00", "15:00", "23:00"}},
		{name: "every 12h", freq: Every12Hours, start: "09:00", want: []string{"09:00", "21:00"}},
		{name: "every 12h late start", freq: Every12Hours, start: "13:15", want: []string{"13:15"}},
		{name: "every 24h midnight", freq: Every24Hours, start: "00:00", want: []string{"00:00"}},
		{name: "every 8h last minute", freq: Every8Hours, start: "23:59", want: []string{"23:59"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := DayWindow(at(10, 0, 0))
			got := GenerateDoses(med("m", tt.freq, tt.start), start, end)
			assert.Equal(t, tt.want, scheduledClock(got))
			for _, d := range got {
				assert.False(t, d.ScheduledTime.Before(start))
				assert.False(t, d.ScheduledTime.After(end))
			}
		})
	}
}

func TestGenerateDoses_AnchorBeforeWindowIsExcluded(t *testing.T) {
	from := at(10, 12, 0)
	_, to := DayWindow(from)

	got := GenerateDoses(med("m", Every8Hours, "07:00"), from, to)

	assert.Equal(t, []string{"15:00", "23:00"}, scheduledClock(got))
}

func TestGenerateDoses_InclusiveBounds(t *testing.T) {
	got := GenerateDoses(med("m", Every12Hours, "06:00"), at(10, 6, 0), at(10, 18, 0))
	assert.Equal(t, []string{"06:00", "18:00"}, scheduledClock(got))
}

func TestGenerateDoses_Deterministic(t *testing.T) {
	m := med("m", Every8Hours, "07:00")
	start, end := DayWindow(at(10, 0, 0))

	first := GenerateDoses(m, start, end)
	second := GenerateDoses(m, start, end)

	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i].ScheduledTime.After(first[i-1].ScheduledTime))
	}
}

func TestGenerateDoses_InvalidInput(t *testing.T) {
	start, end := DayWindow(at(10, 0, 0))
	assert.Empty(t, GenerateDoses(med("m", Frequency(0), "07:00"), start, end))
	assert.Empty(t, GenerateDoses(med("m", Every8Hours, "07:00"), end, start))
}

func TestDoseID_DistinctPerInstant(t *testing.T) {
	a := DoseID("m", at(10, 7, 0))
	b := DoseID("m", at(10, 15, 0))
	c := DoseID("m", at(11, 7, 0))

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, DoseID("m", at(10, 7, 0).UTC()))
}

func TestDayWindow(t *testing.T) {
	start, end := DayWindow(at(10, 17, 42))
	assert.Equal(t, at(10, 0, 0), start)
	assert.Equal(t, time.Date(2025, time.March, 10, 23, 59, 59, 999000000, loc), end)
}

// Reconciler

func TestReconcile_PreservesRecordedStatus(t *testing.T) {
	meds := []Medication{med("a", Every8Hours, "07:00")}
	now := at(10, 16, 0)

	previous := Reconcile(meds, nil, now)
	previous, err := SetStatus(previous, DoseID("a", at(10, 7, 0)), StatusTaken)
	require.NoError(t, err)

	got := Reconcile(meds, previous, now)

	d, ok := Find(got, DoseID("a", at(10, 7, 0)))
	require.True(t, ok)
	assert.Equal(t, StatusTaken, d.Status)
	assert.Len(t, got, 3)
}

func TestReconcile_Idempotent(t *testing.T) {
	meds := []Medication{med("a", Every8Hours, "07:00"), med("b", Every24Hours, "08:00")}
	now := at(10, 9, 0)

	once := Reconcile(meds, nil, now)
	once, err := SetStatus(once, DoseID("b", at(10, 8, 0)), StatusSkipped)
	require.NoError(t, err)

	twice := Reconcile(meds, once, now)
	thrice := Reconcile(meds, twice, now)

	assert.True(t, Equal(once, twice))
	assert.True(t, Equal(twice, thrice))
}

func TestReconcile_DropsOtherDays(t *testing.T) {
	meds := []Medication{med("a", Every24Hours, "08:00")}
	yesterday := Reconcile(meds, nil, at(9, 12, 0))
	yesterday, err := SetStatus(yesterday, yesterday[0].ID, StatusTaken)
	require.NoError(t, err)

	got := Reconcile(meds, yesterday, at(10, 12, 0))

	require.Len(t, got, 1)
	assert.Equal(t, at(10, 8, 0), got[0].ScheduledTime)
	assert.Equal(t, StatusPending, got[0].Status)
}

func TestReconcile_NoDuplicates(t *testing.T) {
	meds := []Medication{med("a", Every8Hours, "07:00")}
	now := at(10, 12, 0)
	previous := append(Reconcile(meds, nil, now), Reconcile(meds, nil, now)...)

	got := Reconcile(meds, previous, now)

	seen := map[string]bool{}
	for _, d := range got {
		assert.False(t, seen[d.ID], "duplicate dose %s", d.ID)
		seen[d.ID] = true
	}
	assert.Len(t, got, 3)
}

func TestReconcile_NewMedicationAppearsPending(t *testing.T) {
	now := at(10, 12, 0)
	meds := []Medication{med("a", Every24Hours, "08:00")}
	previous, _ := SetStatus(Reconcile(meds, nil, now), DoseID("a", at(10, 8, 0)), StatusTaken)

	meds = append(meds, med("b", Every12Hours, "09:00"))
	got := Reconcile(meds, previous, now)

	require.Len(t, got, 3)
	a, _ := Find(got, DoseID("a", at(10, 8, 0)))
	assert.Equal(t, StatusTaken, a.Status)
	b, _ := Find(got, DoseID("b", at(10, 21, 0)))
	assert.Equal(t, StatusPending, b.Status)
}

func TestRemoveMedication_Cascade(t *testing.T) {
	now := at(10, 12, 0)
	meds := []Medication{med("a", Every8Hours, "07:00"), med("b", Every24Hours, "08:00")}
	list := Reconcile(meds, nil, now)

	got := RemoveMedication(list, "a")

	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].MedicationID)
	assert.Len(t, list, 4, "input must not be modified")
}

func TestPruneOrphans(t *testing.T) {
	now := at(10, 12, 0)
	list := Reconcile([]Medication{med("a", Every24Hours, "08:00"), med("b", Every24Hours, "08:00")}, nil, now)

	got := PruneOrphans(list, []Medication{med("b", Every24Hours, "08:00")})

	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].MedicationID)
}

func TestAutoSkipPastDue(t *testing.T) {
	now := at(10, 15, 20)
	list := Reconcile([]Medication{med("a", Every8Hours, "07:00")}, nil, now)

	got := AutoSkipPastDue(30*time.Minute)(list, now)

	assert.Equal(t, []Status{StatusSkipped, StatusPending, StatusPending},
		[]Status{got[0].Status, got[1].Status, got[2].Status})
	assert.Equal(t, StatusPending, list[0].Status, "input must not be modified")
}

func TestAutoSkipPastDue_KeepsRecorded(t *testing.T) {
	now := at(10, 16, 0)
	list := Reconcile([]Medication{med("a", Every8Hours, "07:00")}, nil, now)
	list, _ = SetStatus(list, list[0].ID, StatusTaken)

	got := AutoSkipPastDue(0)(list, now)

	assert.Equal(t, StatusTaken, got[0].Status)
}

// Adherence

func dosesWith(now time.Time, statuses ...Status) []Dose {
	out := make([]Dose, 0, len(statuses))
	for i, s := range statuses {
		when := now.Add(-time.Duration(i+1) * time.Minute)
		out = append(out, Dose{ID: DoseID("m", when), MedicationID: "m", ScheduledTime: when, Status: s})
	}
	return out
}

func TestComputeAdherence(t *testing.T) {
	now := at(10, 20, 0)

	tests := []struct {
		name string
		list []Dose
		want Adherence
	}{
		{name: "empty", list: nil, want: Adherence{Rate: 100}},
		{name: "only pending", list: dosesWith(now, StatusPending, StatusPending), want: Adherence{Pending: 2, Rate: 100}},
		{
			name: "three of four",
			list: dosesWith(now, StatusTaken, StatusTaken, StatusTaken, StatusSkipped),
			want: Adherence{Taken: 3, Skipped: 1, Rate: 75},
		},
		{
			name: "rounds",
			list: dosesWith(now, StatusTaken, StatusTaken, StatusSkipped),
			want: Adherence{Taken: 2, Skipped: 1, Rate: 67},
		},
		{name: "all skipped", list: dosesWith(now, StatusSkipped), want: Adherence{Skipped: 1, Rate: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeAdherence(tt.list, now))
		})
	}
}

func TestComputeAdherence_IgnoresFutureAndOtherDays(t *testing.T) {
	now := at(10, 12, 0)
	list := []Dose{
		{ID: "past", MedicationID: "m", ScheduledTime: at(10, 8, 0), Status: StatusTaken},
		{ID: "future-taken", MedicationID: "m", ScheduledTime: at(10, 18, 0), Status: StatusTaken},
		{ID: "future-pending", MedicationID: "m", ScheduledTime: at(10, 20, 0), Status: StatusPending},
		{ID: "past-pending", MedicationID: "m", ScheduledTime: at(10, 9, 0), Status: StatusPending},
		{ID: "yesterday", MedicationID: "m", ScheduledTime: at(9, 8, 0), Status: StatusSkipped},
	}
	snapshot := clone(list)

	got := ComputeAdherence(list, now)

	assert.Equal(t, Adherence{Taken: 1, Skipped: 0, Pending: 2, Rate: 100}, got)
	assert.Equal(t, snapshot, list)
	assert.Equal(t, got, ComputeAdherence(list, now))
}

func TestAdherenceSummary(t *testing.T) {
	a := Adherence{Taken: 3, Skipped: 1, Rate: 75}
	assert.Equal(t, "Adherence rate: 75%. Taken: 3 doses, Skipped: 1 doses.", a.Summary())
}

func TestAdherenceByMedication(t *testing.T) {
	now := at(10, 23, 30)
	meds := []Medication{med("a", Every8Hours, "07:00"), med("b", Every24Hours, "08:00")}
	list := Reconcile(meds, nil, now)
	list, _ = SetStatus(list, DoseID("a", at(10, 7, 0)), StatusTaken)
	list, _ = SetStatus(list, DoseID("a", at(10, 15, 0)), StatusSkipped)

	got := AdherenceByMedication(list, meds, now)

	require.Len(t, got, 2)
	assert.Equal(t, Adherence{Taken: 1, Skipped: 1, Pending: 1, Rate: 50}, got[0].Adherence)
	assert.Equal(t, Adherence{Pending: 1, Rate: 100}, got[1].Adherence)
	assert.Equal(t, "Med b", got[1].Name)
}

// Status mutator

func TestSetStatus(t *testing.T) {
	list := Reconcile([]Medication{med("a", Every8Hours, "07:00")}, nil, at(10, 12, 0))
	target := list[1].ID

	got, err := SetStatus(list, target, StatusSkipped)
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, got[1].Status)
	assert.Equal(t, list[1].ScheduledTime, got[1].ScheduledTime)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Equal(t, StatusPending, got[2].Status)
	assert.Equal(t, StatusPending, list[1].Status, "input must not be modified")
}

func TestSetStatus_UnknownIDIsNoop(t *testing.T) {
	list := Reconcile([]Medication{med("a", Every8Hours, "07:00")}, nil, at(10, 12, 0))

	got, err := SetStatus(list, "missing", StatusTaken)

	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestSetStatus_RejectsPending(t *testing.T) {
	list := Reconcile([]Medication{med("a", Every8Hours, "07:00")}, nil, at(10, 12, 0))

	_, err := SetStatus(list, list[0].ID, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = SetStatus(list, list[0].ID, Status("late"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// Notification trigger

func TestDueReminders(t *testing.T) {
	meds := []Medication{med("a", Every8Hours, "07:00"), med("b", Every24Hours, "15:00")}
	list := Reconcile(meds, nil, at(10, 6, 0))
	list, _ = SetStatus(list, DoseID("b", at(10, 15, 0)), StatusTaken)

	now := at(10, 15, 0).Add(42 * time.Second)
	got := DueReminders(list, meds, now)

	require.Len(t, got, 1)
	assert.Equal(t, DoseID("a", at(10, 15, 0)), got[0].Dose.ID)
	assert.Equal(t, "Med a", got[0].Medication.Name)
	assert.Equal(t, "Time for Med a", got[0].Title())
	assert.Contains(t, got[0].Body(), "10mg")

	assert.Empty(t, DueReminders(list, meds, at(10, 15, 1)))
	assert.Equal(t, got, DueReminders(list, meds, now), "evaluation has no side effects")
}

func TestDueReminders_SkipsUnknownMedication(t *testing.T) {
	list := Reconcile([]Medication{med("a", Every24Hours, "08:00")}, nil, at(10, 6, 0))
	assert.Empty(t, DueReminders(list, nil, at(10, 8, 0)))
}

// Types

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("07:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 7, Minute: 5}, ct)
	assert.Equal(t, "07:05", ct.String())

	for _, bad := range []string{"", "7", "24:00", "10:60", "aa:bb", "-1:00"} {
		_, err := ParseClockTime(bad)
		assert.ErrorIs(t, err, ErrInvalidClockTime, bad)
	}
}

func TestMedicationValidate(t *testing.T) {
	assert.NoError(t, med("a", Every12Hours, "08:00").Validate())

	bad := []Medication{
		{Name: "", Dosage: "1", Frequency: Every8Hours},
		{Name: "x", Dosage: " ", Frequency: Every8Hours},
		{Name: "x", Dosage: "1", Frequency: 6},
		{Name: "x", Dosage: "1", Frequency: Every8Hours, StartTime: ClockTime{Hour: 25}},
	}
	for _, m := range bad {
		assert.ErrorIs(t, m.Validate(), ErrInvalidMedication)
	}
}

func TestDoseJSON(t *testing.T) {
	d := Dose{ID: "a-1", MedicationID: "a", ScheduledTime: at(10, 7, 0), Status: StatusTaken}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scheduledTime":"2025-03-10T07:00:00-03:00"`)

	var back Dose
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.ScheduledTime.Equal(d.ScheduledTime))
	assert.Equal(t, d.Status, back.Status)
}

func TestMedicationJSON_StartTime(t *testing.T) {
	var m Medication
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","name":"X","dosage":"1","frequency":12,"startTime":"09:30"}`), &m))
	assert.Equal(t, ClockTime{Hour: 9, Minute: 30}, m.StartTime)
	assert.Equal(t, Every12Hours, m.Frequency)

	err := json.Unmarshal([]byte(`{"startTime":"9h"}`), &m)
	assert.ErrorIs(t, err, ErrInvalidClockTime)
}
