package multitrack

import (
	"testing"

	"courier/internal/queue"
)

func TestMatch(t *testing.T) {
	expected := []queue.Track{
		{Artist: "Artist", Album: "Album", SongName: "One"},
		{Artist: "Artist", Album: "Album", SongName: "Two"},
		{Artist: "Artist", Album: "Album", SongName: "Three"},
	}
	all := []queue.Track{
		{Artist: " artist ", Album: "ALBUM", SongName: "one"},
		{Artist: "Artist", Album: "Album", SongName: "Two "},
		{Artist: "artist", Album: "album", SongName: "three"},
	}

	tests := []struct {
		name        string
		expected    []queue.Track
		verified    []queue.Track
		wantStatus  queue.Outcome
		wantMatched int
		wantMissing int
	}{
		{"all matched", expected, all, queue.OutcomeSuccess, 3, 0},
		{"one matched", expected, all[:1], queue.OutcomeWarning, 1, 2},
		{"none matched", expected, []queue.Track{{Artist: "x", Album: "y", SongName: "z"}}, queue.OutcomeError, 0, 3},
		{"nothing verified", expected, nil, queue.OutcomeError, 0, 3},
		{"empty expectation", nil, all, queue.OutcomeSuccess, 0, 0},
		{"empty both", nil, nil, queue.OutcomeSuccess, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.expected, tt.verified)
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if len(got.Matched) != tt.wantMatched || len(got.Missing) != tt.wantMissing {
				t.Fatalf("matched=%d missing=%d", len(got.Matched), len(got.Missing))
			}
		})
	}
}
