// Package loudness measures integrated loudness, true peak and dynamic
// range per ITU-R BS.1770-4, operating on a normalized mono buffer.
package loudness

import (
	"math"
	"sort"

	"github.com/farcloser/mixprep/internal/types"
)

const (
	blockMillis = 400 // gating block length
	stepMillis  = 100 // gating block step (75% overlap)

	// Absolute gate: blocks below -70 LUFS never contribute.
	absoluteGateLUFS = -70.0

	// Relative gate: blocks more than 10 LU below the absolute-gated mean
	// are discarded on the second pass.
	relativeGateLU = 10.0

	truePeakSteps = 4 // quarter-sample interpolation
)

// Biquad filter coefficients.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// Biquad filter state (direct form II transposed).
type biquadState struct {
	z1, z2 float64
}

func (s *biquadState) process(b *biquad, in float64) float64 {
	out := b.b0*in + s.z1
	s.z1 = b.b1*in - b.a1*out + s.z2
	s.z2 = b.b2*in - b.a2*out

	return out
}

// kWeightingFilters derives the two K-weighting stages for the given sample
// rate via the bilinear transform: the head-effect high shelf followed by
// the RLB high pass. The coefficients depend on the rate and must never be
// treated as constants.
func kWeightingFilters(sampleRate int) (pre, rlb biquad) {
	fs := float64(sampleRate)

	// Pre-filter (high shelf), models the acoustic effect of the head.
	f0 := 1681.974450955533
	G := 3.999843853973347
	Q := 0.7071752369554196

	K := math.Tan(math.Pi * f0 / fs)
	Vh := math.Pow(10, G/20)
	Vb := math.Pow(Vh, 0.4996667741545416)

	a0 := 1 + K/Q + K*K
	pre.b0 = (Vh + Vb*K/Q + K*K) / a0
	pre.b1 = 2 * (K*K - Vh) / a0
	pre.b2 = (Vh - Vb*K/Q + K*K) / a0
	pre.a1 = 2 * (K*K - 1) / a0
	pre.a2 = (1 - K/Q + K*K) / a0

	// RLB weighting (high pass).
	f0 = 38.13547087602444
	Q = 0.5003270373238773

	K = math.Tan(math.Pi * f0 / fs)

	a0 = 1 + K/Q + K*K
	rlb.b0 = 1 / a0
	rlb.b1 = -2 / a0
	rlb.b2 = 1 / a0
	rlb.a1 = 2 * (K*K - 1) / a0
	rlb.a2 = (1 - K/Q + K*K) / a0

	return pre, rlb
}

// Measure computes the loudness result for a mono buffer. Empty input,
// input shorter than one gating block, and pure silence all yield an
// integrated loudness of -Inf with zero dynamic range; the true peak is
// still whatever the raw signal shows.
func Measure(samples []float32, sampleRate int) types.LoudnessResult {
	result := types.LoudnessResult{
		IntegratedLUFS: math.Inf(-1),
	}

	result.TruePeak, result.SamplePeak = peaks(samples)

	if len(samples) == 0 || sampleRate <= 0 {
		return result
	}

	blockLen := sampleRate * blockMillis / 1000
	step := sampleRate * stepMillis / 1000

	if blockLen < 1 || step < 1 || len(samples) < blockLen {
		return result
	}

	weighted := kWeight(samples, sampleRate)

	var blocks []float64

	for start := 0; start+blockLen <= len(weighted); start += step {
		var sum float64
		for _, v := range weighted[start : start+blockLen] {
			sum += v * v
		}

		blocks = append(blocks, sum/float64(blockLen))
	}

	absoluteGate := math.Pow(10, (absoluteGateLUFS+0.691)/10)

	var survivors []float64

	for _, p := range blocks {
		if p > absoluteGate {
			survivors = append(survivors, p)
		}
	}

	if len(survivors) == 0 {
		return result
	}

	var sum float64
	for _, p := range survivors {
		sum += p
	}

	relativeThreshold := blockLoudness(sum/float64(len(survivors))) - relativeGateLU

	var gatedSum float64

	gatedCount := 0

	for _, p := range survivors {
		if blockLoudness(p) > relativeThreshold {
			gatedSum += p
			gatedCount++
		}
	}

	if gatedCount == 0 {
		return result
	}

	result.IntegratedLUFS = blockLoudness(gatedSum / float64(gatedCount))
	result.DynamicRange = dynamicRange(survivors)

	return result
}

func blockLoudness(meanSquare float64) float64 {
	return -0.691 + 10*math.Log10(meanSquare)
}

// kWeight runs the signal through both filter stages.
func kWeight(samples []float32, sampleRate int) []float64 {
	pre, rlb := kWeightingFilters(sampleRate)

	var preState, rlbState biquadState

	out := make([]float64, len(samples))

	for i, s := range samples {
		v := preState.process(&pre, float64(s))
		out[i] = rlbState.process(&rlb, v)
	}

	return out
}

// peaks scans the unfiltered signal for the sample peak and a best-effort
// true peak, interpolating linearly at quarter-sample steps between each
// adjacent pair.
func peaks(samples []float32) (truePeak, samplePeak float64) {
	for i, s := range samples {
		cur := float64(s)
		if abs := math.Abs(cur); abs > samplePeak {
			samplePeak = abs
		}

		if i+1 >= len(samples) {
			break
		}

		next := float64(samples[i+1])
		for q := range truePeakSteps {
			v := cur + (next-cur)*float64(q)/truePeakSteps
			if abs := math.Abs(v); abs > truePeak {
				truePeak = abs
			}
		}
	}

	truePeak = math.Max(truePeak, samplePeak)

	return truePeak, samplePeak
}

// dynamicRange sorts the absolute-gate survivors and reports the spread
// between the 95th and 10th percentile block loudness. Needs at least two
// blocks to mean anything.
func dynamicRange(survivors []float64) float64 {
	if len(survivors) < 2 {
		return 0
	}

	values := make([]float64, len(survivors))
	for i, p := range survivors {
		values[i] = blockLoudness(p)
	}

	sort.Float64s(values)

	soft := values[int(float64(len(values))*0.10)]
	loud := values[int(float64(len(values))*0.95)]

	return math.Max(0, loud-soft)
}
