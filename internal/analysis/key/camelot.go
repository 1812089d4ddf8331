package key

// Camelot wheel positions indexed by pitch class (0 = C). The B ring holds
// major keys, the A ring minor keys; the table in internal/types documents
// the full layout.
//
//nolint:gochecknoglobals // reference data, effectively const
var (
	majorWheel = [12]string{"8B", "3B", "10B", "5B", "12B", "7B", "2B", "9B", "4B", "11B", "6B", "1B"}
	minorWheel = [12]string{"5A", "12A", "7A", "2A", "9A", "4A", "11A", "6A", "1A", "8A", "3A", "10A"}
)

// wheelNotation maps a detected key to its Camelot code.
func wheelNotation(pitchClass int, minor bool) (string, bool) {
	if pitchClass < 0 || pitchClass > 11 {
		return "", false
	}

	if minor {
		return minorWheel[pitchClass], true
	}

	return majorWheel[pitchClass], true
}
