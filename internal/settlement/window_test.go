package settlement

import (
	"testing"
	"time"
)

func clockAt(hour, min int) time.Time {
	return time.Date(2025, 11, 9, hour, min, 0, 0, time.UTC)
}

func TestParseQuietWindow(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "empty disables", in: ""},
		{name: "plain", in: "03:00-09:00"},
		{name: "wraps midnight", in: "22:00-04:00"},
		{name: "spaces tolerated", in: "03:00 - 09:00"},
		{name: "missing dash", in: "03:00", wantErr: true},
		{name: "bad hour", in: "25:00-09:00", wantErr: true},
		{name: "not a clock", in: "soon-later", wantErr: true},
		{name: "empty window", in: "03:00-03:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuietWindow(tt.in)
			if tt.wantErr != (err != nil) {
				t.Fatalf("ParseQuietWindow(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestQuietWindowContains(t *testing.T) {
	plain, err := ParseQuietWindow("03:00-09:00")
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := ParseQuietWindow("22:00-04:00")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		w    QuietWindow
		at   time.Time
		want bool
	}{
		{"before start", plain, clockAt(2, 59), false},
		{"at start", plain, clockAt(3, 0), true},
		{"inside", plain, clockAt(6, 30), true},
		{"last minute", plain, clockAt(8, 59), true},
		{"at end", plain, clockAt(9, 0), false},
		{"wrap late night", wrapped, clockAt(23, 0), true},
		{"wrap early morning", wrapped, clockAt(2, 0), true},
		{"wrap daytime", wrapped, clockAt(12, 0), false},
		{"wrap at end", wrapped, clockAt(4, 0), false},
		{"zero value never matches", QuietWindow{}, clockAt(3, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Contains(tt.at); got != tt.want {
				t.Fatalf("Contains(%s) = %v, want %v", tt.at.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestRetryScheduleIsLinear(t *testing.T) {
	s := retrySchedule{base: 2 * time.Second, maxRetries: 3}
	for attempt, want := range map[int]time.Duration{
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 6 * time.Second,
	} {
		if got := s.waitFor(attempt); got != want {
			t.Errorf("waitFor(%d) = %s, want %s", attempt, got, want)
		}
	}
}
