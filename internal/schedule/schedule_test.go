package schedule

import (
	"errors"
	"testing"
	"time"

	"slatrack/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkContiguous(t *testing.T, periods []Period) {
	t.Helper()
	for i := range periods {
		if periods[i].End.Before(periods[i].Start) {
			t.Fatalf("period %d ends before it starts: %v > %v", i, periods[i].Start, periods[i].End)
		}
		if i == 0 {
			continue
		}
		want := periods[i-1].End.AddDate(0, 0, 1)
		if !periods[i].Start.Equal(want) {
			t.Fatalf("period %d starts %v, want %v (previous end %v)", i, periods[i].Start, want, periods[i-1].End)
		}
	}
}

func TestMonthlyTiling(t *testing.T) {
	exp := date(2023, time.March, 31)
	periods, err := Generate(date(2023, time.January, 1), &exp, domain.FrequencyMonthly, date(2023, time.June, 1), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []Period{
		{date(2023, time.January, 1), date(2023, time.January, 31)},
		{date(2023, time.February, 1), date(2023, time.February, 28)},
		{date(2023, time.March, 1), date(2023, time.March, 31)},
	}
	if len(periods) != len(want) {
		t.Fatalf("got %d periods, want %d: %v", len(periods), len(want), periods)
	}
	for i := range want {
		if !periods[i].Start.Equal(want[i].Start) || !periods[i].End.Equal(want[i].End) {
			t.Fatalf("period %d = %v..%v, want %v..%v", i, periods[i].Start, periods[i].End, want[i].Start, want[i].End)
		}
	}
	checkContiguous(t, periods)
}

func TestMonthEndClamping(t *testing.T) {
	exp := date(2024, time.June, 30)
	periods, err := Generate(date(2024, time.January, 31), &exp, domain.FrequencyMonthly, date(2024, time.January, 31), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// leap year: first period ends on the last day of February, not March 2
	if !periods[0].End.Equal(date(2024, time.February, 29)) {
		t.Fatalf("first period ends %v, want 2024-02-29", periods[0].End)
	}
	if !periods[1].Start.Equal(date(2024, time.March, 1)) {
		t.Fatalf("second period starts %v, want 2024-03-01", periods[1].Start)
	}
	checkContiguous(t, periods)
	last := periods[len(periods)-1]
	if !last.End.Equal(exp) {
		t.Fatalf("final end %v, want expiration %v", last.End, exp)
	}
}

func TestMonthEndClampingNonLeap(t *testing.T) {
	exp := date(2023, time.April, 30)
	periods, err := Generate(date(2023, time.January, 30), &exp, domain.FrequencyMonthly, date(2023, time.January, 30), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !periods[0].End.Equal(date(2023, time.February, 28)) {
		t.Fatalf("first period ends %v, want 2023-02-28", periods[0].End)
	}
	checkContiguous(t, periods)
}

func TestQuarterlyAndYearly(t *testing.T) {
	exp := date(2024, time.December, 31)
	quarters, err := Generate(date(2023, time.January, 1), &exp, domain.FrequencyQuarterly, date(2023, time.January, 1), 0)
	if err != nil {
		t.Fatalf("quarterly: %v", err)
	}
	if len(quarters) != 8 {
		t.Fatalf("got %d quarters, want 8", len(quarters))
	}
	if !quarters[0].End.Equal(date(2023, time.March, 31)) {
		t.Fatalf("first quarter ends %v", quarters[0].End)
	}
	checkContiguous(t, quarters)

	years, err := Generate(date(2023, time.January, 1), &exp, domain.FrequencyYearly, date(2023, time.January, 1), 0)
	if err != nil {
		t.Fatalf("yearly: %v", err)
	}
	if len(years) != 2 {
		t.Fatalf("got %d years, want 2", len(years))
	}
	if !years[0].End.Equal(date(2023, time.December, 31)) {
		t.Fatalf("first year ends %v", years[0].End)
	}
	checkContiguous(t, years)
}

func TestNoExpirationHorizon(t *testing.T) {
	now := date(2024, time.March, 15)
	periods, err := Generate(date(2024, time.March, 1), nil, domain.FrequencyMonthly, now, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	wantEnd := now.AddDate(0, 0, DefaultHorizonDays)
	last := periods[len(periods)-1]
	if !last.End.Equal(wantEnd) {
		t.Fatalf("horizon end %v, want %v", last.End, wantEnd)
	}
	checkContiguous(t, periods)
}

func TestCustomHorizon(t *testing.T) {
	now := date(2024, time.March, 15)
	periods, err := Generate(date(2024, time.March, 1), nil, domain.FrequencyMonthly, now, 30)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	if !periods[1].End.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("clipped end %v", periods[1].End)
	}
}

func TestFinalPeriodClipped(t *testing.T) {
	exp := date(2023, time.February, 10)
	periods, err := Generate(date(2023, time.January, 1), &exp, domain.FrequencyMonthly, date(2023, time.January, 1), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	if !periods[1].End.Equal(exp) {
		t.Fatalf("final end %v, want %v", periods[1].End, exp)
	}
}

func TestUnknownFrequencyFails(t *testing.T) {
	exp := date(2023, time.December, 31)
	_, err := Generate(date(2023, time.January, 1), &exp, "WEEKLY", date(2023, time.January, 1), 0)
	if !errors.Is(err, domain.ErrUnknownFrequency) {
		t.Fatalf("expected ErrUnknownFrequency, got %v", err)
	}
}

func TestYearlyLeapDayStart(t *testing.T) {
	exp := date(2027, time.February, 28)
	periods, err := Generate(date(2024, time.February, 29), &exp, domain.FrequencyYearly, date(2024, time.February, 29), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !periods[0].End.Equal(date(2025, time.February, 28)) {
		t.Fatalf("first year ends %v, want 2025-02-28", periods[0].End)
	}
	checkContiguous(t, periods)
}

func TestExpirationBeforeEffective(t *testing.T) {
	exp := date(2022, time.December, 31)
	periods, err := Generate(date(2023, time.January, 1), &exp, domain.FrequencyMonthly, date(2023, time.January, 1), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 0 {
		t.Fatalf("expected no periods, got %d", len(periods))
	}
}
