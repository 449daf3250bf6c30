package saftcr

import "testing"

func TestParseNr(t *testing.T) {
	cases := []struct {
		in        string
		wantVal   float64
		wantValid bool
	}{
		{"42", 42, true},
		{"1,234", 0, false},
		{"nr-42x", 42, true},
		{"", 0, false},
	}
	for _, tc := range cases {
		val, valid := parseNr(tc.in)
		if valid != tc.wantValid {
			t.Errorf("parseNr(%q) valid = %v, want %v", tc.in, valid, tc.wantValid)
			continue
		}
		if valid && val != tc.wantVal {
			t.Errorf("parseNr(%q) = %v, want %v", tc.in, val, tc.wantVal)
		}
	}
}

func TestLongestDigitRun(t *testing.T) {
	cases := map[string]string{
		"abc123de4567fg": "4567",
		"nodigitshere":    "",
		"007":             "007",
	}
	for in, want := range cases {
		if got := longestDigitRun(in); got != want {
			t.Errorf("longestDigitRun(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDateTimeCombinesDateAndClock(t *testing.T) {
	tm := parseDateTime("2024-01-15", "10:30:00")
	if tm.Year() != 2024 || tm.Month() != 1 || tm.Day() != 15 {
		t.Fatalf("date portion wrong: %v", tm)
	}
	if tm.Hour() != 10 || tm.Minute() != 30 {
		t.Fatalf("time portion wrong: %v", tm)
	}
}

func TestParseDateTimeDateOnly(t *testing.T) {
	tm := parseDateTime("2024-01-15", "")
	if tm.IsZero() {
		t.Fatal("expected a non-zero time for date-only input")
	}
}
