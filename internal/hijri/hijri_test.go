package hijri

import (
	"testing"
	"time"
)

func TestKnownDates(t *testing.T) {
	cases := []struct {
		gregorian time.Time
		want      Date
	}{
		{time.Date(2024, time.July, 8, 0, 0, 0, 0, time.UTC), Date{Year: 1446, Month: 1, Day: 1}},
		{time.Date(2024, time.July, 7, 0, 0, 0, 0, time.UTC), Date{Year: 1445, Month: 12, Day: 30}},
	}
	for _, tc := range cases {
		got := FromGregorian(tc.gregorian)
		if got != tc.want {
			t.Errorf("FromGregorian(%s) = %+v, want %+v", tc.gregorian.Format("2006-01-02"), got, tc.want)
		}
		back := ToGregorian(tc.want)
		if !back.Equal(tc.gregorian) {
			t.Errorf("ToGregorian(%+v) = %s, want %s", tc.want, back.Format("2006-01-02"), tc.gregorian.Format("2006-01-02"))
		}
	}
}

func TestRoundTrip(t *testing.T) {
	start := time.Date(1995, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2000; i += 13 {
		day := start.AddDate(0, 0, i)
		h := FromGregorian(day)

		if h.Month < 1 || h.Month > 12 {
			t.Fatalf("month out of range for %s: %+v", day.Format("2006-01-02"), h)
		}
		if h.Day < 1 || h.Day > 30 {
			t.Fatalf("day out of range for %s: %+v", day.Format("2006-01-02"), h)
		}

		back := ToGregorian(h)
		if !back.Equal(day) {
			t.Fatalf("round trip %s -> %+v -> %s", day.Format("2006-01-02"), h, back.Format("2006-01-02"))
		}
	}
}

func TestLunarYearLength(t *testing.T) {
	// Consecutive years of the same Hijri date are 354 or 355 Gregorian
	// days apart in the tabular calendar.
	for year := 1440; year < 1450; year++ {
		a := ToGregorian(Date{Year: year, Month: 1, Day: 1})
		b := ToGregorian(Date{Year: year + 1, Month: 1, Day: 1})
		days := int(b.Sub(a).Hours() / 24)
		if days != 354 && days != 355 {
			t.Errorf("year %d spans %d days", year, days)
		}
	}
}

func TestMonthName(t *testing.T) {
	d := Date{Year: 1446, Month: 9, Day: 1}
	if d.MonthName() != "Ramadan" {
		t.Errorf("unexpected month name %q", d.MonthName())
	}
	if d.String() != "1 Ramadan 1446 AH" {
		t.Errorf("unexpected format %q", d.String())
	}
	if (Date{Month: 13}).MonthName() != "" {
		t.Error("out-of-range month should have empty name")
	}
}
