//nolint:tagliatelle
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"

	binpath "github.com/farcloser/mixprep/internal/integration/binary"
)

// Result contains the marshalled output of ffprobe.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream carries the per-stream fields the analysis pipeline needs.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`            // flac
	CodecType  string `json:"codec_type"`            // audio
	SampleRate string `json:"sample_rate,omitempty"` // 44100
	Channels   int    `json:"channels,omitempty"`    // 2
	Duration   string `json:"duration,omitempty"`    // 310.666667
}

// Format carries container-level information.
type Format struct {
	FormatName string `json:"format_name"`        // "flac", "mov,mp4,m4a,3gp,3g2,mj2"
	Duration   string `json:"duration,omitempty"` // seconds as a float string
}

// Info is the digested probe output the pipeline consumes.
type Info struct {
	SampleRate int
	Channels   int
	Duration   float64 // seconds; 0 when the container does not report one
}

// ProbeBytes runs ffprobe over an in-memory byte buffer and digests the
// first audio stream. Formats that require seeking (some mp4 layouts) may
// fail on a pipe; the caller treats any failure as "no metadata".
func ProbeBytes(ctx context.Context, data []byte) (*Info, error) {
	result, err := run(ctx, bytes.NewReader(data), "-")
	if err != nil {
		return nil, err
	}

	return digest(result)
}

// Probe runs ffprobe on a file path.
func Probe(ctx context.Context, filePath string) (*Info, error) {
	slog.Debug("ffprobe.Probe", "file path", filePath)

	result, err := run(ctx, nil, filePath)
	if err != nil {
		return nil, err
	}

	return digest(result)
}

func run(ctx context.Context, stdin io.Reader, target string) (*Result, error) {
	ffprobePath, err := binpath.Resolve(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // target is intentionally user-provided input for probing media files
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		target,
	)

	cmd.Stdin = stdin

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	var result Result
	if err = json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return &result, nil
}

var errNoAudioStream = errors.New("no audio stream found")

func digest(result *Result) (*Info, error) {
	for i := range result.Streams {
		stream := &result.Streams[i]
		if stream.CodecType != "audio" {
			continue
		}

		info := &Info{Channels: stream.Channels}

		if rate, err := strconv.Atoi(stream.SampleRate); err == nil && rate > 0 {
			info.SampleRate = rate
		}

		// Stream duration is more precise than the container's, when present.
		if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil && d > 0 {
			info.Duration = d
		} else if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil && d > 0 {
			info.Duration = d
		}

		return info, nil
	}

	return nil, errNoAudioStream
}
