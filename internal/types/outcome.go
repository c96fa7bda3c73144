package types

// Status classifies a verification outcome.
type Status string

const (
	StatusCorrect   Status = "correct"
	StatusPartial   Status = "partial"
	StatusIncorrect Status = "incorrect"
	StatusError     Status = "error"
)

// Known reports whether s is one of the four defined statuses.
func (s Status) Known() bool {
	switch s {
	case StatusCorrect, StatusPartial, StatusIncorrect, StatusError:
		return true
	}
	return false
}

// VerificationOutcome is the structured result of one verification attempt.
// It is immutable once delivered; a new attempt replaces it wholesale.
type VerificationOutcome struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence,omitempty"`
	Feedback   string  `json:"feedback"`
}
