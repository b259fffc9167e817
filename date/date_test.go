package date

import (
	"testing"
	"time"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		// Note that usually time.Time are not comparable (there is a pointer for the timezone) this
		// tests also checks that the property remain true
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2023-01-10", "2023-06-01", 142},
		{"2023-06-01", "2023-01-10", -142},
		{"2023-12-31", "2024-01-01", 1},
		{"2024-02-28", "2024-03-01", 2}, // leap year
		{"2023-05-05", "2023-05-05", 0},
	}
	for _, tc := range tests {
		got := DaysBetween(MustParse(tc.a), MustParse(tc.b))
		if got != tc.want {
			t.Errorf("DaysBetween(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMonthsHeld(t *testing.T) {
	tests := []struct {
		acquired string
		year     int
		want     int
	}{
		{"2023-01-15", 2023, 12},
		{"2023-07-01", 2023, 6},
		{"2023-12-31", 2023, 1},
		{"2020-03-10", 2023, 12},
		{"2024-01-01", 2023, 0},
	}
	for _, tc := range tests {
		got := MonthsHeld(MustParse(tc.acquired), tc.year)
		if got != tc.want {
			t.Errorf("MonthsHeld(%s, %d) = %d, want %d", tc.acquired, tc.year, got, tc.want)
		}
	}
}

func TestParseNormalizes(t *testing.T) {
	d, err := Parse("2025-7-1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d != New(2025, time.July, 1) {
		t.Errorf("Parse(2025-7-1) = %s, want 2025-07-01", d)
	}
}
