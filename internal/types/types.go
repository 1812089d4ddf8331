package types

// Buffer holds decoded audio, downmixed to a single channel and normalized
// to [-1.0, 1.0]. It is created once per file, handed to the analyzers, and
// discarded; nothing retains it past analysis.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Seconds returns the buffer duration.
func (b *Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}

	return float64(len(b.Samples)) / float64(b.SampleRate)
}

/*
Key / Camelot Interpretation

The Camelot wheel maps the 24 major/minor keys onto 12 clock positions,
with an A ring (minor) and a B ring (major). Adjacent positions, and the
A/B pair sharing a position, are harmonically compatible, which is what
DJ software uses the notation for.

  | Position | Minor (A) | Major (B) |
  |----------|-----------|-----------|
  | 1        | G# minor  | B major   |
  | 2        | D# minor  | F# major  |
  | 3        | A# minor  | C# major  |
  | 4        | F minor   | G# major  |
  | 5        | C minor   | D# major  |
  | 6        | G minor   | A# major  |
  | 7        | D minor   | F major   |
  | 8        | A minor   | C major   |
  | 9        | E minor   | G major   |
  | 10       | B minor   | D major   |
  | 11       | F# minor  | A major   |
  | 12       | C# minor  | E major   |

Note names use sharps only; pitch class 0 = C, ascending by semitone.
*/

// KeyResult contains the detected musical key.
type KeyResult struct {
	Key     string // e.g. "A minor"
	Camelot string // e.g. "8A"
}

/*
Loudness Interpretation

## Integrated Loudness (LUFS)

  | IntegratedLUFS | Context                                |
  |----------------|----------------------------------------|
  | -23 to -18     | Broadcast/streaming target range       |
  | -16 to -14     | Typical modern pop/rock master         |
  | -12 to -10     | Loud/compressed master                 |
  | -Inf           | Silence, or nothing survived the gates |

## Dynamic Range (LU)

The spread between the 95th and 10th percentile block loudness of the
absolute-gate survivors. Simplified relative to EBU LRA: no relative gate
and 400ms blocks rather than 3s windows, so values run slightly wider.

## True Peak

Best-effort: quarter-sample linear interpolation between adjacent samples,
reported as linear amplitude (1.0 = full scale), not dBTP. Peaks that only
a proper 4x polyphase reconstruction would reveal are underestimated.
*/

// LoudnessResult contains the BS.1770-4 loudness measurement.
type LoudnessResult struct {
	IntegratedLUFS float64 // gated loudness; -Inf when nothing survives gating
	TruePeak       float64 // max interpolated amplitude, linear
	SamplePeak     float64 // max raw sample amplitude, linear
	DynamicRange   float64 // percentile spread in LU, >= 0
}
