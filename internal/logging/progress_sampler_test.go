package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)

	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{9.9, false},
		{10, true},
		{15, false},
		{35, true},
		{30, false},
		{100, true},
		{120, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSampler_UnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if s.ShouldLog(-1) {
		t.Fatal("unknown percent should not log")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50)
	s.Reset()
	if !s.ShouldLog(0) {
		t.Fatal("expected emit after reset")
	}
}
