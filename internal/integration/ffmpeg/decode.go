//nolint:wrapcheck
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"

	"github.com/farcloser/primordium/fault"

	binpath "github.com/farcloser/mixprep/internal/integration/binary"
)

// DecodeStream decodes the first audio stream of whatever container ffmpeg
// recognizes on input into interleaved 32-bit float little-endian PCM at
// the source sample rate and channel layout.
func DecodeStream(ctx context.Context, input io.Reader, output io.Writer) error {
	slog.Debug("ffmpeg.DecodeStream", "stage", "start")

	ffmpegPath, err := binpath.Resolve(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", "-",
		"-map", "0:a:0",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-v", "quiet",
		"-",
	)

	cmd.Stdout = output
	cmd.Stdin = input

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Debug("ffmpeg.DecodeStream", "stage", "timeout")

			return fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		slog.Debug("ffmpeg.DecodeStream", "stage", "error")

		return fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	return nil
}

// Deinterleave splits raw f32le PCM as produced by DecodeStream into
// per-channel sample buffers. Trailing partial frames are dropped.
func Deinterleave(raw []byte, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}

	frameSize := 4 * channels
	frames := len(raw) / frameSize

	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	for frame := range frames {
		base := frame * frameSize
		for ch := range channels {
			bits := binary.LittleEndian.Uint32(raw[base+ch*4:])
			out[ch][frame] = math.Float32frombits(bits)
		}
	}

	return out
}
