//nolint:wrapcheck
package mixprep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/mixprep/internal/integration/ffmpeg"
	"github.com/farcloser/mixprep/internal/integration/ffprobe"
	"github.com/farcloser/mixprep/internal/pcm"
	"github.com/farcloser/mixprep/internal/types"
)

// FallbackDecoder decodes compressed or container formats the native PCM
// decoder cannot handle into per-channel float buffers. Failures are caught
// by the pipeline and downgrade to "no analysis available", never an error.
type FallbackDecoder interface {
	Decode(ctx context.Context, data []byte) (sampleRate int, channels [][]float32, err error)
}

// ContainerProber recovers container-level metadata (duration, sample
// rate), which may succeed even when sample decoding fails.
type ContainerProber interface {
	Probe(ctx context.Context, path string) (duration float64, sampleRate int, ok bool)
}

// Pipeline runs decode+analyze for a single file. It is stateless and safe
// for concurrent use; the scheduler runs one invocation per task.
type Pipeline struct {
	Fallback FallbackDecoder // nil disables the fallback path
	Prober   ContainerProber // nil disables metadata recovery
}

// NewPipeline returns a pipeline wired to the system ffmpeg/ffprobe
// binaries.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Fallback: &systemDecoder{},
		Prober:   &systemProber{},
	}
}

// nativeExtensions route through the RIFF/WAVE decoder before any fallback.
//
//nolint:gochecknoglobals // effectively const
var nativeExtensions = map[string]bool{
	".wav":  true,
	".wave": true,
}

// Run decodes and analyzes one file. Only an unreadable file is an error;
// an unsupported or unparsable format yields a Result with null analysis
// fields plus whatever the container probe could still recover.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var buf *types.Buffer

	if nativeExtensions[strings.ToLower(filepath.Ext(req.Path))] {
		buf = pcm.Decode(data)
	}

	if buf == nil && p.Fallback != nil {
		// Fallback failures are not task failures: the bytes were read
		// fine, the content just is not analyzable.
		if rate, channels, derr := p.Fallback.Decode(ctx, data); derr == nil {
			buf = pcm.Downmix(channels, rate)
		}
	}

	if buf == nil || len(buf.Samples) == 0 {
		return p.unanalyzable(ctx, req), nil
	}

	measured := Analyze(buf)

	duration := buf.Seconds()
	sampleRate := buf.SampleRate

	result := &Result{
		RequestID:      req.ID,
		BPM:            measured.BPM,
		LUFSIntegrated: measured.Loudness.IntegratedLUFS,
		LUFSPeak:       measured.Loudness.TruePeak,
		DynamicRange:   measured.Loudness.DynamicRange,
		Duration:       &duration,
		SampleRate:     &sampleRate,
	}

	if measured.Key != nil {
		result.Key = &measured.Key.Key
		result.Camelot = &measured.Key.Camelot
	}

	return result, nil
}

// unanalyzable builds the null-valued terminal Result for a file that was
// read but could not be decoded, recovering container metadata when the
// prober manages to.
func (p *Pipeline) unanalyzable(ctx context.Context, req Request) *Result {
	result := &Result{
		RequestID:      req.ID,
		LUFSIntegrated: math.Inf(-1),
	}

	if p.Prober != nil {
		if duration, sampleRate, ok := p.Prober.Probe(ctx, req.Path); ok {
			if duration > 0 {
				result.Duration = &duration
			}

			if sampleRate > 0 {
				result.SampleRate = &sampleRate
			}
		}
	}

	return result
}

var errBadStreamShape = errors.New("probe reported unusable stream shape")

// systemDecoder is the ffmpeg-backed FallbackDecoder: probe the bytes for
// their stream shape, then decode to interleaved f32le and split channels.
type systemDecoder struct{}

func (*systemDecoder) Decode(ctx context.Context, data []byte) (int, [][]float32, error) {
	info, err := ffprobe.ProbeBytes(ctx, data)
	if err != nil {
		return 0, nil, err
	}

	if info.SampleRate <= 0 || info.Channels <= 0 {
		return 0, nil, errBadStreamShape
	}

	var raw bytes.Buffer

	if err := ffmpeg.DecodeStream(ctx, bytes.NewReader(data), &raw); err != nil {
		return 0, nil, err
	}

	return info.SampleRate, ffmpeg.Deinterleave(raw.Bytes(), info.Channels), nil
}

// systemProber is the ffprobe-backed ContainerProber.
type systemProber struct{}

func (*systemProber) Probe(ctx context.Context, path string) (float64, int, bool) {
	info, err := ffprobe.Probe(ctx, path)
	if err != nil {
		return 0, 0, false
	}

	return info.Duration, info.SampleRate, true
}
