package model

// Status is the verdict of a ValidationReport.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusWarning Status = "WARNING"
	StatusFail    Status = "FAIL"
)

// StatusForScore maps a total score to its verdict.
func StatusForScore(score int) Status {
	switch {
	case score >= 90:
		return StatusPass
	case score >= 70:
		return StatusWarning
	default:
		return StatusFail
	}
}

// LayerScores breaks the total score down by validation layer.
type LayerScores struct {
	Syntax    int `json:"syntax"`
	Semantics int `json:"semantics"`
	Domain    int `json:"domain"`
	Agreement int `json:"agreement"`
}

// Total sums the four layers.
func (l LayerScores) Total() int {
	return l.Syntax + l.Semantics + l.Domain + l.Agreement
}

// ValidationReport is the immutable outcome of validating one Result.
type ValidationReport struct {
	EntityID        string      `json:"entity_id"`
	TotalScore      int         `json:"total_score"`
	Status          Status      `json:"status"`
	Layers          LayerScores `json:"layers"`
	FailureReasons  []string    `json:"failure_reasons"`
	Recommendations []string    `json:"recommendations"`
}
