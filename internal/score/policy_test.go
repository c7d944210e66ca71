package score

import (
	"math"
	"math/rand"
	"testing"
)

func TestClamp(t *testing.T) {
	if Clamp01(math.NaN()) != 0 || Clamp01(-1) != 0 || Clamp01(2) != 1 || Clamp01(0.3) != 0.3 {
		t.Error("Clamp01 out of contract")
	}
	if Clamp100(math.NaN()) != 0 || Clamp100(-5) != 0 || Clamp100(250) != 100 || Clamp100(42) != 42 {
		t.Error("Clamp100 out of contract")
	}
}

func TestWeights_Combined(t *testing.T) {
	tests := []struct {
		desc    string
		w       Weights
		match   float64
		quality float64
		want    float64
	}{
		{"default weights", DefaultWeights, 90, 50, 74},
		{"inputs clamped", DefaultWeights, 150, -20, 60},
		{"weights normalized", Weights{Match: 3, Quality: 1}, 80, 40, 70},
		{"zero weights fall back to default", Weights{}, 100, 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := tt.w.Combined(tt.match, tt.quality)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Combined = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeights_CombinedAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		w := Weights{Match: rng.Float64()*4 - 1, Quality: rng.Float64()*4 - 1}
		got := w.Combined(rng.Float64()*400-200, rng.Float64()*400-200)
		if got < 0 || got > 100 || math.IsNaN(got) {
			t.Fatalf("Combined out of range: %v (weights %+v)", got, w)
		}
	}
}

func TestParseAggregation(t *testing.T) {
	for in, want := range map[string]Aggregation{
		"":               AggregateRepresentative,
		"representative": AggregateRepresentative,
		" MAX ":          AggregateMax,
		"noisy_or":       AggregateNoisyOr,
	} {
		got, err := ParseAggregation(in)
		if err != nil || got != want {
			t.Errorf("ParseAggregation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseAggregation("mean"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestAggregation_Aggregate(t *testing.T) {
	contributions := []Contribution{
		{Confidence: 0.6, Domain: "discogs.com"},
		{Confidence: 0.5, Domain: "discogs.com"},
		{Confidence: 0.5, Domain: "ra.co"},
	}

	if got := AggregateRepresentative.Aggregate(0.6, contributions); got != 0.6 {
		t.Errorf("representative = %v, want 0.6", got)
	}
	if got := AggregateMax.Aggregate(0.5, contributions); got != 0.6 {
		t.Errorf("max = %v, want 0.6", got)
	}
	// 1 - (1-0.6)(1-0.5): one discogs page repeating itself counts once
	if got := AggregateNoisyOr.Aggregate(0.6, contributions); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("noisy_or = %v, want 0.8", got)
	}
	if got := AggregateNoisyOr.Aggregate(0.4, nil); got != 0.4 {
		t.Errorf("noisy_or without contributions = %v, want 0.4", got)
	}
	if got := AggregateMax.Aggregate(1.4, nil); got != 1 {
		t.Errorf("max clamps, got %v", got)
	}
}
