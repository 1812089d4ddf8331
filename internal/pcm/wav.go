// Package pcm decodes uncompressed RIFF/WAVE containers into normalized
// mono sample buffers. Anything it cannot parse (bad magic, truncated
// chunks, compressed codecs) yields nil rather than an error: the caller
// falls through to the generic decoder, and only I/O failures are errors.
package pcm

import (
	"encoding/binary"
	"math"

	"github.com/farcloser/mixprep/internal/types"
)

const (
	headerSize = 12 // "RIFF" + size + "WAVE"

	tagPCM        = 1
	tagIEEEFloat  = 3
	tagExtensible = 0xFFFE

	// Offset of the sub-format tag inside an extensible format descriptor,
	// and the minimum descriptor size that guarantees it is present.
	extensibleTagOffset  = 24
	extensibleMinDescLen = 26
)

type formatDesc struct {
	tag        int
	channels   int
	sampleRate int
	bitDepth   int
}

// Decode parses a RIFF/WAVE byte buffer and returns the normalized mono
// samples, or nil when the buffer is not a decodable PCM container.
// Every read is bounds-checked; malformed input can never panic.
func Decode(data []byte) *types.Buffer {
	if len(data) < headerSize {
		return nil
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil
	}

	var (
		desc               *formatDesc
		dataOffset, dataSz int
	)

	// Walk chunks: 4-byte tag, 4-byte little-endian size, payload padded
	// to the next even byte.
	pos := headerSize
	for pos+8 <= len(data) && (desc == nil || dataSz == 0) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		if size < 0 || body+size > len(data) {
			break
		}

		switch id {
		case "fmt ":
			desc = parseFormat(data[body : body+size])
		case "data":
			dataOffset, dataSz = body, size
		}

		pos = body + size + (size & 1)
	}

	if desc == nil || dataSz == 0 {
		return nil
	}

	if desc.tag != tagPCM && desc.tag != tagIEEEFloat {
		return nil
	}

	if desc.channels <= 0 || desc.sampleRate <= 0 {
		return nil
	}

	return extract(data[dataOffset:dataOffset+dataSz], desc)
}

func parseFormat(body []byte) *formatDesc {
	if len(body) < 16 {
		return nil
	}

	desc := &formatDesc{
		tag:        int(binary.LittleEndian.Uint16(body[0:2])),
		channels:   int(binary.LittleEndian.Uint16(body[2:4])),
		sampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
		bitDepth:   int(binary.LittleEndian.Uint16(body[14:16])),
	}

	// WAVE_FORMAT_EXTENSIBLE carries the real tag in the sub-format GUID.
	if desc.tag == tagExtensible && len(body) >= extensibleMinDescLen {
		desc.tag = int(binary.LittleEndian.Uint16(body[extensibleTagOffset : extensibleTagOffset+2]))
	}

	return desc
}

//nolint:cyclop // one arm per bit depth, same shape as the extraction loops elsewhere
func extract(raw []byte, desc *formatDesc) *types.Buffer {
	bytesPerSample := (desc.bitDepth + 7) / 8

	switch {
	case desc.tag == tagPCM && desc.bitDepth == 16:
	case desc.tag == tagPCM && desc.bitDepth == 24:
	case desc.tag == tagPCM && desc.bitDepth == 32:
	case desc.tag == tagIEEEFloat && desc.bitDepth == 32:
	default:
		return nil
	}

	frameSize := bytesPerSample * desc.channels
	frames := len(raw) / frameSize

	samples := make([]float32, frames)

	for frame := range frames {
		var sum float64

		for ch := range desc.channels {
			off := frame*frameSize + ch*bytesPerSample

			switch {
			case desc.bitDepth == 16:
				v := int16(binary.LittleEndian.Uint16(raw[off:]))
				sum += float64(v) / 32768.0
			case desc.bitDepth == 24:
				v := int32(raw[off]) | int32(raw[off+1])<<8 | int32(raw[off+2])<<16
				if v&0x800000 != 0 {
					v |= ^0xFFFFFF
				}

				sum += float64(v) / 8388608.0
			case desc.tag == tagIEEEFloat:
				v := math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
				sum += float64(v)
			default: // 32-bit integer PCM
				v := int32(binary.LittleEndian.Uint32(raw[off:]))
				sum += float64(v) / 2147483648.0
			}
		}

		samples[frame] = float32(sum / float64(desc.channels))
	}

	return &types.Buffer{Samples: samples, SampleRate: desc.sampleRate}
}

// Downmix averages per-channel buffers into a mono Buffer. A single channel
// passes through unchanged. Channels shorter than the longest one contribute
// zero past their end.
func Downmix(channels [][]float32, sampleRate int) *types.Buffer {
	if len(channels) == 0 || sampleRate <= 0 {
		return nil
	}

	if len(channels) == 1 {
		return &types.Buffer{Samples: channels[0], SampleRate: sampleRate}
	}

	longest := 0
	for _, ch := range channels {
		longest = max(longest, len(ch))
	}

	samples := make([]float32, longest)

	for i := range samples {
		var sum float64

		for _, ch := range channels {
			if i < len(ch) {
				sum += float64(ch[i])
			}
		}

		samples[i] = float32(sum / float64(len(channels)))
	}

	return &types.Buffer{Samples: samples, SampleRate: sampleRate}
}
