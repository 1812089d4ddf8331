package mixprep

import (
	"github.com/farcloser/mixprep/internal/analysis/key"
	"github.com/farcloser/mixprep/internal/analysis/loudness"
	"github.com/farcloser/mixprep/internal/analysis/tempo"
	"github.com/farcloser/mixprep/internal/types"
)

/*
Usage:

buf := pcm.Decode(data)
m := mixprep.Analyze(buf)
if m.BPM != nil {
    fmt.Printf("%.1f BPM\n", *m.BPM)
}
fmt.Printf("%.1f LUFS\n", m.Loudness.IntegratedLUFS)

Or, for many files at once, through the scheduler:

s := mixprep.NewScheduler(ctx, mixprep.SchedulerOptions{MaxConcurrent: 4})
l := s.Subscribe()
s.Enqueue("track-1", "/music/track.flac", mixprep.PriorityNormal)
r := <-l.Results
*/

// Measurements bundles the three analyzer outputs for one sample buffer.
// Nil BPM/Key mean the analyzer declined the input; the loudness meter
// always produces a value (possibly -Inf for silence).
type Measurements struct {
	BPM      *float64
	Key      *types.KeyResult
	Loudness types.LoudnessResult
}

// Analyze runs tempo, key and loudness estimation over one buffer. The
// analyzers are pure: the same buffer always yields the same measurements,
// and the buffer itself is never modified.
func Analyze(buf *types.Buffer) Measurements {
	measured := Measurements{
		Loudness: loudness.Measure(buf.Samples, buf.SampleRate),
	}

	if bpm, ok := tempo.Estimate(buf.Samples, buf.SampleRate); ok {
		measured.BPM = &bpm
	}

	if detected, ok := key.Estimate(buf.Samples, buf.SampleRate); ok {
		measured.Key = detected
	}

	return measured
}
