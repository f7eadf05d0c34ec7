package format

import (
	"testing"
	"time"
)

func TestDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "iso date", in: "2024-05-01", want: "01.05.2024"},
		{name: "empty", in: "", want: ""},
		{name: "not a date", in: "yesterday", want: "yesterday"},
		{name: "two parts", in: "2024-05", want: "2024-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Date(tt.in); got != tt.want {
				t.Errorf("Date(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDateOnly(t *testing.T) {
	if got := DateOnly("2024-05-01T10:20:30.123+00:00"); got != "2024-05-01" {
		t.Errorf("DateOnly() = %q", got)
	}
	if got := DateOnly("2024-05-01"); got != "2024-05-01" {
		t.Errorf("DateOnly() = %q", got)
	}
	if got := DateOnly(""); got != "" {
		t.Errorf("DateOnly(\"\") = %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "rfc3339 with offset",
			in:   "2024-05-01T10:20:30.123456789+00:00",
			want: time.Date(2024, 5, 1, 10, 20, 30, 123456789, time.UTC),
		},
		{
			name: "no zone",
			in:   "2024-05-01T10:20:30",
			want: time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name: "date only",
			in:   "2024-05-01",
			want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "empty", in: "", want: fallback},
		{name: "garbage", in: "not a time", want: fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.in, fallback)
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
