package billing

import (
	"testing"
	"time"
)

// TestDaysIn tests month lengths including leap years.
func TestDaysIn(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.January, 31},
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2000, time.February, 29},
		{1900, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		if got := DaysIn(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysIn(%d, %s) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

// TestAddMonthsClamped verifies the clamp never rolls into the following month.
func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{"jan 31 plus one", time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{"aug 31 plus three", time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC), 3, time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC)},
		{"leap day plus twelve", time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), 12, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{"zero months", time.Date(2024, time.May, 17, 13, 0, 0, 0, time.UTC), 0, time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonthsClamped(tt.from, tt.n); !got.Equal(tt.want) {
				t.Errorf("AddMonthsClamped() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestLastDayOfMonth tests last-day lookup.
func TestLastDayOfMonth(t *testing.T) {
	got := LastDayOfMonth(time.Date(2024, time.February, 3, 10, 0, 0, 0, time.UTC))
	if want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("LastDayOfMonth() = %s, want %s", got, want)
	}
}

// TestParseCadence tests parsing and month offsets.
func TestParseCadence(t *testing.T) {
	tests := []struct {
		in         string
		want       Cadence
		wantMonths int
		wantErr    bool
	}{
		{"MONTHLY", Monthly, 1, false},
		{"quarterly", Quarterly, 3, false},
		{" Yearly ", Yearly, 12, false},
		{"weekly", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCadence(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCadence(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCadence(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got.Months() != tt.wantMonths {
			t.Errorf("%q.Months() = %d, want %d", got, got.Months(), tt.wantMonths)
		}
	}
}
