package timeutil

import "testing"

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"72h30m15s", "3d 0h 30m 15s"},
		{"2h5m0s", "2h 5m 0s"},
		{"90s", "1m 30s"},
		{"5s", "5s"},
		{"not-a-duration", "not-a-duration"},
	}
	for _, c := range cases {
		if got := FormatUptime(c.in); got != c.want {
			t.Errorf("FormatUptime(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatTime_InvalidReturnsOriginal(t *testing.T) {
	if got := FormatTime("not-a-timestamp"); got != "not-a-timestamp" {
		t.Errorf("expected original string back, got %q", got)
	}
}

func TestFormatTime_ValidRFC3339(t *testing.T) {
	got := FormatTime("2024-01-02T15:04:05Z")
	if got == "2024-01-02T15:04:05Z" {
		t.Error("expected formatted local time, got unparsed input back")
	}
	if got == "" {
		t.Error("expected non-empty formatted time")
	}
}
