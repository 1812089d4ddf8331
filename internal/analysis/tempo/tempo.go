// Package tempo estimates BPM from mono samples via onset-strength
// autocorrelation.
package tempo

import (
	"math"
)

const (
	// Energy frames are 10ms long with a 50% hop, so the onset signal runs
	// at 200 frames per second.
	framesPerSecond = 200

	minBPM = 60
	maxBPM = 200

	// Corrections below this BPM re-check the half lag: fractional beat
	// periods can make the double-period lag win spuriously.
	octaveCheckBPM = 105

	minSeconds   = 2
	silenceFloor = 1e-6
)

// Estimate returns the estimated tempo in BPM, rounded to one decimal.
// It reports false for input shorter than two seconds, for silence, and
// when the onset signal carries no periodicity at all.
func Estimate(samples []float32, sampleRate int) (float64, bool) {
	if sampleRate <= 0 {
		return 0, false
	}

	// Gate on sample duration, not the derived frame count: a buffer of
	// exactly two seconds yields one frame fewer than minSeconds worth of
	// hops and must still be accepted.
	if len(samples) < minSeconds*sampleRate {
		return 0, false
	}

	frameLen := sampleRate / 100
	hop := frameLen / 2

	if frameLen < 2 || hop < 1 {
		return 0, false
	}

	numFrames := (len(samples)-frameLen)/hop + 1

	energy := make([]float64, numFrames)

	var total float64

	for i := range numFrames {
		start := i * hop

		var sum float64
		for _, s := range samples[start : start+frameLen] {
			sum += float64(s) * float64(s)
		}

		energy[i] = sum / float64(frameLen)
		total += energy[i]
	}

	if total/float64(numFrames) < silenceFloor {
		return 0, false
	}

	// Half-wave rectified energy flux.
	onset := make([]float64, numFrames-1)
	for i := 1; i < numFrames; i++ {
		if delta := energy[i] - energy[i-1]; delta > 0 {
			onset[i-1] = delta
		}
	}

	minLag := framesPerSecond * 60 / maxBPM
	maxLag := min(framesPerSecond*60/minBPM, len(onset)-1)

	bestLag, bestCorr := 0, 0.0

	for lag := minLag; lag <= maxLag; lag++ {
		if corr := correlate(onset, lag); corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestCorr == 0 {
		return 0, false
	}

	bpm := float64(framesPerSecond) * 60 / float64(bestLag)
	if bpm < octaveCheckBPM {
		bestLag = correctOctave(onset, bestLag)
		bpm = float64(framesPerSecond) * 60 / float64(bestLag)
	}

	return math.Round(bpm*10) / 10, true
}

// correctOctave scores the floor and ceiling of half the winning lag and
// switches to whichever correlates best, when either correlates at all.
func correctOctave(onset []float64, lag int) int {
	half := float64(lag) / 2

	best := lag
	bestCorr := 0.0

	for _, candidate := range []int{int(math.Floor(half)), int(math.Ceil(half))} {
		if candidate < 1 || candidate == best {
			continue
		}

		if corr := correlate(onset, candidate); corr > bestCorr {
			bestCorr = corr
			best = candidate
		}
	}

	return best
}

func correlate(onset []float64, lag int) float64 {
	var sum float64
	for i := 0; i+lag < len(onset); i++ {
		sum += onset[i] * onset[i+lag]
	}

	return sum
}
