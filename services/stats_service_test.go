package services

import (
	"testing"
	"time"
)

func TestFreshnessBucket(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name        string
		lastScraped *time.Time
		want        string
	}{
		{"never scraped", nil, "never_scraped"},
		{"hours ago", ago(6 * time.Hour), "very_fresh"},
		{"just under a day", ago(23 * time.Hour), "very_fresh"},
		{"three days", ago(3 * 24 * time.Hour), "fresh"},
		{"exactly a week", ago(7 * 24 * time.Hour), "fresh"},
		{"two weeks", ago(14 * 24 * time.Hour), "moderate"},
		{"exactly thirty days", ago(30 * 24 * time.Hour), "moderate"},
		{"two months", ago(60 * 24 * time.Hour), "stale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FreshnessBucket(tt.lastScraped, now); got != tt.want {
				t.Errorf("FreshnessBucket = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopCounts(t *testing.T) {
	counts := map[string]int64{
		"Lahore":    5,
		"Karachi":   8,
		"Islamabad": 5,
		"Peshawar":  1,
	}

	top := topCounts(counts, 3)
	if len(top) != 3 {
		t.Fatalf("got %d entries, want 3", len(top))
	}
	if top[0].Name != "Karachi" || top[0].Count != 8 {
		t.Errorf("first entry = %+v", top[0])
	}
	// Tie at 5 broken alphabetically
	if top[1].Name != "Islamabad" || top[2].Name != "Lahore" {
		t.Errorf("tie order = %s, %s", top[1].Name, top[2].Name)
	}
}
