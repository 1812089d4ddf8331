// Package ffmpeg shells out to ffmpeg as the generic decode fallback for
// compressed and container formats the native PCM decoder cannot handle.
package ffmpeg

import "time"

const (
	name = "ffmpeg"
	// Slow hard-drives spinning up or network retrieved resources may cause timeouts if too aggressive.
	timeout = 60 * time.Second
)
