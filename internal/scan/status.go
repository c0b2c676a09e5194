package scan

// Status is the lifecycle state of a scan session.
type Status string

const (
	// StatusIdle means no image has been provided yet.
	StatusIdle Status = "idle"
	// StatusImageSelected means an image is held and can be submitted.
	StatusImageSelected Status = "image_selected"
	// StatusAnalyzing means exactly one analysis request is in flight.
	StatusAnalyzing Status = "analyzing"
	// StatusResultReady holds a validated analysis result.
	StatusResultReady Status = "result_ready"
	// StatusFailed holds the message of a failed analysis.
	StatusFailed Status = "failed"
)

// CanTransition reports whether the state machine allows moving from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusImageSelected
	case StatusImageSelected:
		return to == StatusImageSelected || to == StatusAnalyzing || to == StatusIdle
	case StatusAnalyzing:
		return to == StatusResultReady || to == StatusFailed
	case StatusResultReady, StatusFailed:
		return to == StatusIdle || to == StatusImageSelected
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
