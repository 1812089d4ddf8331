// Package key estimates the musical key of a mono signal by correlating a
// summed chromagram against the 24 rotations of the Krumhansl-Schmuckler
// major and minor profiles.
package key

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/farcloser/mixprep/internal/types"
)

const (
	fftSize = 4096
	hopSize = fftSize / 2

	// Bins outside this band contribute mostly rumble and noise.
	minFreq = 80.0
	maxFreq = 4000.0

	// Frequency of pitch class 0 (C0); the chromagram folds every bin onto
	// one of 12 classes relative to it.
	c0Freq = 16.3516

	minSeconds        = 2
	silenceFloor      = 1e-6
	chromaEnergyFloor = 1e-10
)

// Krumhansl-Schmuckler tonal hierarchy profiles, index 0 = tonic.
//
//nolint:gochecknoglobals // reference data, effectively const
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

//nolint:gochecknoglobals // reference data, effectively const
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Estimate returns the detected key and its Camelot notation. It reports
// false for input shorter than two seconds, for silence, and when the
// chromagram carries no usable energy.
func Estimate(samples []float32, sampleRate int) (*types.KeyResult, bool) {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil, false
	}

	if len(samples) < minSeconds*sampleRate {
		return nil, false
	}

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}

	if energy/float64(len(samples)) < silenceFloor {
		return nil, false
	}

	chroma := chromagram(samples, sampleRate)

	var chromaEnergy float64
	for _, c := range chroma {
		chromaEnergy += c
	}

	if chromaEnergy < chromaEnergyFloor {
		return nil, false
	}

	root, minor := bestProfileMatch(chroma)

	name := noteNames[root] + " major"
	if minor {
		name = noteNames[root] + " minor"
	}

	camelot, ok := wheelNotation(root, minor)
	if !ok {
		return nil, false
	}

	return &types.KeyResult{Key: name, Camelot: camelot}, true
}

// chromagram frames the signal with a Hann window, takes a real FFT per
// frame and folds the energy of every in-band bin onto its pitch class.
// All frames are summed into a single 12-bin vector. Energy rather than
// magnitude: magnitude flattens the chroma enough that a major triad
// becomes indistinguishable from its submediant minor under the profile
// correlation.
func chromagram(samples []float32, sampleRate int) [12]float64 {
	var chroma [12]float64

	window := hannWindow(fftSize)
	fft := fourier.NewFFT(fftSize)
	fftIn := make([]float64, fftSize)

	var coeffs []complex128

	binHz := float64(sampleRate) / fftSize

	for start := 0; start+fftSize <= len(samples); start += hopSize {
		for i := range fftIn {
			fftIn[i] = float64(samples[start+i]) * window[i]
		}

		coeffs = fft.Coefficients(coeffs, fftIn)

		for bin := 1; bin < len(coeffs); bin++ {
			freq := float64(bin) * binHz
			if freq < minFreq || freq > maxFreq {
				continue
			}

			class := int(math.Round(12*math.Log2(freq/c0Freq))) % 12

			re, im := real(coeffs[bin]), imag(coeffs[bin])
			chroma[class] += re*re + im*im
		}
	}

	return chroma
}

// bestProfileMatch correlates the chroma vector against all 24 rotated
// profiles. Rotations are computed by index arithmetic rather than by
// mutating the profile arrays.
func bestProfileMatch(chroma [12]float64) (root int, minor bool) {
	best := math.Inf(-1)

	for candidate := range 12 {
		var rotated [12]float64

		for j := range 12 {
			rotated[j] = majorProfile[(j-candidate+12)%12]
		}

		if corr := pearson(chroma, rotated); corr > best {
			best = corr
			root, minor = candidate, false
		}

		for j := range 12 {
			rotated[j] = minorProfile[(j-candidate+12)%12]
		}

		if corr := pearson(chroma, rotated); corr > best {
			best = corr
			root, minor = candidate, true
		}
	}

	return root, minor
}

func pearson(x, y [12]float64) float64 {
	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}

	meanX /= 12
	meanY /= 12

	var cov, varX, varY float64

	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0
	}

	return cov / math.Sqrt(varX*varY)
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	return window
}
