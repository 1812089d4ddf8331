package mixprep

// Priority orders pending queue items: high-priority requests are inserted
// at the front of the pending list, normal ones appended at the back.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	}

	return "unknown"
}

// Request identifies one analysis task: which file, under which caller-chosen
// identifier, at which priority.
type Request struct {
	ID       string
	Path     string
	Priority Priority
}

// Result is the terminal success record for a request. Exactly one Result
// or TaskError is ever emitted per request, never both.
//
// Nil pointer fields mean the corresponding analyzer declined the input
// (silence, too short, undecodable), a valid terminal state, not a failure.
// An undecodable file yields a Result with every analysis field nil/zeroed
// and whatever duration/sample rate the container probe could still recover.
type Result struct {
	RequestID      string
	BPM            *float64
	Key            *string
	Camelot        *string
	LUFSIntegrated float64 // -Inf when the file was silent or undecodable
	LUFSPeak       float64
	DynamicRange   float64
	Duration       *float64
	SampleRate     *int
}

// TaskError is the terminal failure record for a request: the file could
// not be read at all, or the task crashed. Scoped to its request; other
// queued items are unaffected.
type TaskError struct {
	RequestID string
	Message   string
}

// QueueStatus is a point-in-time snapshot of the scheduler. Total counts
// every request ever enqueued and only grows.
type QueueStatus struct {
	Pending int
	Running int
	Total   int
}
