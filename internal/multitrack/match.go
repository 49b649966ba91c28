package multitrack

import "courier/internal/queue"

// Outcome is the result of comparing expected and verified tracks.
type Outcome struct {
	Status  queue.Outcome
	Matched []queue.Track
	Missing []queue.Track
}

// Match compares expected tracks with the verified list by case-insensitive,
// whitespace-trimmed (artist, album, song name). All matched is a success,
// some is a warning, none is an error. An empty expectation is a success.
func Match(expected, verified []queue.Track) Outcome {
	index := make(map[string]queue.Track, len(verified))
	for _, track := range verified {
		key := track.MatchKey()
		if _, ok := index[key]; !ok {
			index[key] = track
		}
	}

	out := Outcome{Status: queue.OutcomeSuccess}
	for _, want := range expected {
		if got, ok := index[want.MatchKey()]; ok {
			out.Matched = append(out.Matched, got)
			continue
		}
		out.Missing = append(out.Missing, want)
	}

	switch {
	case len(expected) == 0:
		out.Status = queue.OutcomeSuccess
	case len(out.Matched) == 0:
		out.Status = queue.OutcomeError
	case len(out.Missing) > 0:
		out.Status = queue.OutcomeWarning
	}
	return out
}
