package routing

// Standard SMS segmentation thresholds: 160 characters for 7-bit alphabets,
// 70 once any extended (non-ASCII) code point forces UCS-2 encoding.
const (
	gsm7SegmentSize = 160
	ucs2SegmentSize = 70
)

// Segments computes the number of billable SMS units for a message body.
func Segments(message string) int {
	runes := []rune(message)
	if len(runes) == 0 {
		return 1
	}

	size := gsm7SegmentSize
	for _, r := range runes {
		if r > 127 {
			size = ucs2SegmentSize
			break
		}
	}

	segments := (len(runes) + size - 1) / size
	if segments < 1 {
		segments = 1
	}
	return segments
}
