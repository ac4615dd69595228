package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
)

func TestEngine_Step(t *testing.T) {
	t.Parallel()

	madrid := time.FixedZone("CET", 1*60*60)
	engine := NewEngine(madrid)

	cases := []struct {
		name   string
		anchor time.Time
		freq   persistence.SeriesFrequency
		n      int
		want   time.Time
	}{
		{
			name:   "weekly adds seven days",
			anchor: time.Date(2024, time.March, 4, 10, 30, 0, 0, madrid),
			freq:   persistence.SeriesFrequencyWeekly,
			n:      1,
			want:   time.Date(2024, time.March, 11, 10, 30, 0, 0, madrid),
		},
		{
			name:   "fortnightly adds fourteen days per step",
			anchor: time.Date(2024, time.March, 4, 10, 30, 0, 0, madrid),
			freq:   persistence.SeriesFrequencyFortnightly,
			n:      2,
			want:   time.Date(2024, time.April, 1, 10, 30, 0, 0, madrid),
		},
		{
			name:   "monthly keeps day of month",
			anchor: time.Date(2024, time.January, 15, 9, 0, 0, 0, madrid),
			freq:   persistence.SeriesFrequencyMonthly,
			n:      1,
			want:   time.Date(2024, time.February, 15, 9, 0, 0, 0, madrid),
		},
		{
			name:   "monthly clamps to end of leap february",
			anchor: time.Date(2024, time.January, 31, 9, 0, 0, 0, madrid),
			freq:   persistence.SeriesFrequencyMonthly,
			n:      1,
			want:   time.Date(2024, time.February, 29, 9, 0, 0, 0, madrid),
		},
		{
			name:   "monthly steps from the anchor not the clamped date",
			anchor: time.Date(2024, time.January, 31, 9, 0, 0, 0, madrid),
			freq:   persistence.SeriesFrequencyMonthly,
			n:      2,
			want:   time.Date(2024, time.March, 31, 9, 0, 0, 0, madrid),
		},
		{
			name:   "monthly crosses the year boundary",
			anchor: time.Date(2024, time.December, 10, 9, 0, 0, 0, madrid),
			freq:   persistence.SeriesFrequencyMonthly,
			n:      1,
			want:   time.Date(2025, time.January, 10, 9, 0, 0, 0, madrid),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := engine.Step(tc.anchor, tc.freq, tc.n)
			if err != nil {
				t.Fatalf("Step returned error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("Step = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEngine_StepRejectsUnknownFrequency(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(nil).Step(time.Now(), persistence.SeriesFrequencyNone, 1)
	if !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestEngine_Expand(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	got, err := NewEngine(time.UTC).Expand(anchor, persistence.SeriesFrequencyWeekly, 3)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	want := []time.Time{
		time.Date(2024, time.March, 11, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 18, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 25, 10, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("Expand returned %d occurrences, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}

	empty, err := NewEngine(time.UTC).Expand(anchor, persistence.SeriesFrequencyWeekly, 0)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no occurrences, got %v (err %v)", empty, err)
	}

	if _, err := NewEngine(time.UTC).Expand(anchor, persistence.SeriesFrequencyWeekly, -1); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount, got %v", err)
	}
}
