// Package ffprobe wraps ffprobe for container-level metadata: sample rate
// and channel count for the decode fallback, and duration recovery for
// files whose samples cannot be decoded at all.
package ffprobe

import "time"

const (
	name = "ffprobe"
	// Slow hard-drives spinning up or network retrieved resources may cause timeouts if too aggressive.
	timeout = 60 * time.Second
)
