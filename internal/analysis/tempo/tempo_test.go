package tempo

import (
	"math"
	"testing"
)

// clickTrack lays 5ms unit-amplitude clicks at the given tempo over silence.
func clickTrack(bpm float64, seconds float64, sampleRate int) []float32 {
	samples := make([]float32, int(seconds*float64(sampleRate)))
	beatInterval := 60.0 / bpm * float64(sampleRate)
	clickLen := sampleRate / 200

	for beat := 0; ; beat++ {
		start := int(math.Round(float64(beat) * beatInterval))
		if start >= len(samples) {
			break
		}

		for i := start; i < start+clickLen && i < len(samples); i++ {
			samples[i] = 1.0
		}
	}

	return samples
}

func TestEstimateClickTracks(t *testing.T) {
	tempos := []float64{60, 72, 87.5, 95, 120, 128, 140, 174, 200}
	rates := []int{44100, 48000}

	for _, rate := range rates {
		for _, want := range tempos {
			samples := clickTrack(want, 8, rate)

			got, ok := Estimate(samples, rate)
			if !ok {
				t.Fatalf("rate %d, %v BPM: expected an estimate", rate, want)
			}

			if relErr := math.Abs(got-want) / want; relErr > 0.05 {
				t.Fatalf("rate %d: estimated %v BPM for a %v BPM track (%.1f%% off)",
					rate, got, want, relErr*100)
			}
		}
	}
}

func TestEstimateAcceptsExactlyTwoSeconds(t *testing.T) {
	for _, rate := range []int{44100, 48000} {
		samples := clickTrack(120, 2, rate)
		if len(samples) != 2*rate {
			t.Fatalf("fixture is %d samples, want exactly %d", len(samples), 2*rate)
		}

		got, ok := Estimate(samples, rate)
		if !ok {
			t.Fatalf("rate %d: a two second clip must be accepted", rate)
		}

		if math.Abs(got-120)/120 > 0.05 {
			t.Fatalf("rate %d: estimated %v BPM for a 120 BPM track", rate, got)
		}
	}
}

func TestEstimateRejectsShortInput(t *testing.T) {
	samples := clickTrack(120, 1, 44100)

	if _, ok := Estimate(samples, 44100); ok {
		t.Fatal("expected rejection for a one second clip")
	}

	almost := clickTrack(120, 2, 44100)[:2*44100-1]
	if _, ok := Estimate(almost, 44100); ok {
		t.Fatal("expected rejection one sample under two seconds")
	}
}

func TestEstimateRejectsSilence(t *testing.T) {
	samples := make([]float32, 3*44100)

	if _, ok := Estimate(samples, 44100); ok {
		t.Fatal("expected rejection for silence")
	}
}

func TestEstimateRejectsSteadyTone(t *testing.T) {
	// Constant energy produces an all-zero onset signal.
	samples := make([]float32, 3*44100)
	for i := range samples {
		samples[i] = 0.5
	}

	if _, ok := Estimate(samples, 44100); ok {
		t.Fatal("expected rejection when no onsets exist")
	}
}

func TestEstimateRejectsBadSampleRate(t *testing.T) {
	if _, ok := Estimate(make([]float32, 1000), 0); ok {
		t.Fatal("expected rejection for a zero sample rate")
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	samples := clickTrack(128, 6, 44100)

	first, ok := Estimate(samples, 44100)
	if !ok {
		t.Fatal("expected an estimate")
	}

	second, _ := Estimate(samples, 44100)
	if first != second {
		t.Fatalf("estimates differ across runs: %v vs %v", first, second)
	}
}
